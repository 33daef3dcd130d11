package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"learning-platform-core/internal/config"
	"learning-platform-core/internal/domain/model"
	pg "learning-platform-core/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	courseRepo := pg.NewCourseRepo(pool)
	userRepo := pg.NewUserRepo(pool)

	// If courses already exist, do nothing.
	courses, err := courseRepo.ListPublished(ctx, nil)
	if err != nil {
		log.Fatalf("list courses: %v", err)
	}
	if len(courses) > 0 {
		fmt.Printf("%d published courses already present. No changes.\n", len(courses))
		for _, c := range courses {
			fmt.Printf("  - %s (price=%d %s, access=%s)\n", c.Title, c.Price, c.Currency, c.AccessDuration)
		}
		return
	}

	duration, err := model.ParseAccessDuration(cfg.Billing.DefaultAccessDuration)
	if err != nil {
		log.Fatalf("parse default access duration: %v", err)
	}

	course, err := model.NewCourse("", "Go Backend Engineering", 4999, cfg.Billing.Currency, duration)
	if err != nil {
		log.Fatalf("build course: %v", err)
	}
	course.Description = "From net/http basics to production services."
	course.Status = model.CourseStatusPublished
	course.Sections = []model.Section{
		{
			Title: "Getting Started",
			Topics: []model.Topic{
				{Title: "Why Go", IsFree: true}, // free preview
				{Title: "Tooling and Modules"},
			},
		},
		{
			Title: "HTTP Services",
			Topics: []model.Topic{
				{Title: "Routing and Middleware"},
				{Title: "JSON APIs"},
				{Title: "Graceful Shutdown"},
			},
		},
	}
	if err := courseRepo.Save(ctx, nil, course); err != nil {
		log.Fatalf("save course: %v", err)
	}
	fmt.Printf("seeded course: %s (id=%s, %d topics)\n", course.Title, course.ID, course.TotalTopics())

	admin, err := model.NewUser("", "admin@example.com", "Platform Admin", model.RoleAdmin)
	if err != nil {
		log.Fatalf("build admin: %v", err)
	}
	if err := userRepo.Save(ctx, nil, admin); err != nil {
		log.Fatalf("save admin: %v", err)
	}
	fmt.Printf("seeded admin user: %s (id=%s)\n", admin.Email, admin.ID)

	fmt.Println("Seeding complete.")
}

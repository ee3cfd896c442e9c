// Command seed imports a course catalog and timetable into DynamoDB.
// The input file is the YAML export produced by the registrar tooling.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	"swapcourses-backend/infrastructure/config"
	"swapcourses-backend/infrastructure/persistence/dynamodb"
)

type catalogFile struct {
	Programs  []programEntry  `yaml:"programs"`
	Timeslots []timeslotEntry `yaml:"timeslots"`
}

type programEntry struct {
	Code    string        `yaml:"code"`
	Name    string        `yaml:"name"`
	Courses []courseEntry `yaml:"courses"`
}

type courseEntry struct {
	Code              string   `yaml:"code"`
	Name              string   `yaml:"name"`
	CreditHours       int      `yaml:"creditHours"`
	PrerequisiteHours int      `yaml:"prerequisiteHours"`
	Prerequisites     []string `yaml:"prerequisites"`
}

type timeslotEntry struct {
	ID         string `yaml:"id"`
	CourseCode string `yaml:"courseCode"`
	Group      string `yaml:"group"`
	Day        string `yaml:"day"`
	StartsAt   string `yaml:"startsAt"`
	EndsAt     string `yaml:"endsAt"`
}

func main() {
	path := flag.String("file", "catalog.yaml", "path to the catalog YAML file")
	flag.Parse()

	if err := run(*path); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run(path string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.StorageBackend != "dynamodb" {
		return fmt.Errorf("seeding requires STORAGE_BACKEND=dynamodb")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return fmt.Errorf("load AWS configuration: %w", err)
	}
	client := awsdynamodb.NewFromConfig(awsCfg)

	programs := dynamodb.NewProgramRepository(client, cfg.DynamoDBTable, logger)
	timeslots := dynamodb.NewTimeslotRepository(client, cfg.DynamoDBTable, cfg.OfferIndexName, logger)

	for _, p := range catalog.Programs {
		program, err := buildProgram(p)
		if err != nil {
			return fmt.Errorf("program %s: %w", p.Code, err)
		}
		if err := programs.Save(ctx, program); err != nil {
			return fmt.Errorf("save program %s: %w", p.Code, err)
		}
		logger.Info("seeded program",
			zap.String("code", program.Code),
			zap.Int("courses", len(program.Required)),
		)
	}

	for _, t := range catalog.Timeslots {
		code, err := valueobjects.NewCourseCode(t.CourseCode)
		if err != nil {
			return fmt.Errorf("timeslot %s: %w", t.ID, err)
		}
		slot := &entities.Timeslot{
			ID:         valueobjects.TimeslotID(t.ID),
			CourseCode: code,
			Group:      t.Group,
			Day:        t.Day,
			StartsAt:   t.StartsAt,
			EndsAt:     t.EndsAt,
		}
		if err := timeslots.Save(ctx, slot); err != nil {
			return fmt.Errorf("save timeslot %s: %w", t.ID, err)
		}
	}
	logger.Info("seeded timeslots", zap.Int("count", len(catalog.Timeslots)))

	return nil
}

func buildProgram(p programEntry) (*entities.Program, error) {
	required := make([]*entities.CourseCatalogEntry, 0, len(p.Courses))
	for _, c := range p.Courses {
		courseCode, err := valueobjects.NewCourseCode(c.Code)
		if err != nil {
			return nil, err
		}
		prereqs := make([]valueobjects.CourseCode, 0, len(c.Prerequisites))
		for _, raw := range c.Prerequisites {
			prereq, err := valueobjects.NewCourseCode(raw)
			if err != nil {
				return nil, err
			}
			prereqs = append(prereqs, prereq)
		}
		required = append(required, &entities.CourseCatalogEntry{
			Code:              courseCode,
			Name:              c.Name,
			CreditHours:       c.CreditHours,
			PrerequisiteHours: c.PrerequisiteHours,
			Prerequisites:     prereqs,
		})
	}
	return &entities.Program{Code: p.Code, Name: p.Name, Required: required}, nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"smartnagrik/backend/internal/api/handler"
	"smartnagrik/backend/internal/complaint"
	"smartnagrik/backend/internal/config"
	"smartnagrik/backend/internal/localization"
	"smartnagrik/backend/internal/models"
	"smartnagrik/backend/internal/notify"
	"smartnagrik/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  create-user <CITIZEN|FIELD_OFFICER|ADMIN> <email> <password> <full name...>
  add-zone <name> <centroid_lat> <centroid_lng> [department]
  add-category <name> [department]
  advance <complaint_number> <status> [proof] [notes...]
  show <complaint_number>`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.LoadUnchecked()
	db, err := config.OpenDB(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	s := storage.NewStorageService(db, nil) // No redis needed for admin CLI
	ctx := context.Background()

	args := os.Args[2:]
	switch os.Args[1] {
	case "create-user":
		if len(args) < 4 {
			fail("Usage: admin create-user <role> <email> <password> <full name...>")
		}
		u, err := createUser(ctx, s, models.Role(strings.ToUpper(args[0])), args[1], args[2], strings.Join(args[3:], " "))
		if err != nil {
			log.Fatalf("ERROR: creating user: %v", err)
		}
		fmt.Printf("User %s (%s) created with id %s.\n", u.Email, u.Role, u.ID)
	case "add-zone":
		if len(args) < 3 {
			fail("Usage: admin add-zone <name> <centroid_lat> <centroid_lng> [department]")
		}
		lat, errLat := strconv.ParseFloat(args[1], 64)
		lng, errLng := strconv.ParseFloat(args[2], 64)
		if errLat != nil || errLng != nil {
			fail("Invalid coordinates. Please provide decimal degrees.")
		}
		z := &models.Zone{Name: args[0], CentroidLat: &lat, CentroidLng: &lng}
		if len(args) > 3 {
			z.Department = args[3]
		}
		if err := s.SaveZone(ctx, z); err != nil {
			log.Fatalf("ERROR: adding zone: %v", err)
		}
		fmt.Printf("Zone %q added with id %d.\n", z.Name, z.ID)
	case "add-category":
		if len(args) < 1 {
			fail("Usage: admin add-category <name> [department]")
		}
		cat := &models.Category{Name: args[0]}
		if len(args) > 1 {
			cat.Department = args[1]
		}
		if err := s.SaveCategory(ctx, cat); err != nil {
			log.Fatalf("ERROR: adding category: %v", err)
		}
		fmt.Printf("Category %q added with id %d.\n", cat.Name, cat.ID)
	case "advance":
		if len(args) < 2 {
			fail("Usage: admin advance <complaint_number> <status> [proof] [notes...]")
		}
		req := complaint.TransitionRequest{Target: models.Status(strings.ToUpper(args[1])), ActorID: "admin-cli"}
		if len(args) > 2 {
			req.Proof = &args[2]
		}
		if len(args) > 3 {
			req.Notes = strings.Join(args[3:], " ")
		}
		c, err := advance(ctx, s, args[0], req)
		if err != nil {
			log.Fatalf("ERROR: advancing complaint: %v", err)
		}
		fmt.Printf("Complaint %s is now %s.\n", c.ComplaintNumber, c.Status)
	case "show":
		if len(args) != 1 {
			fail("Usage: admin show <complaint_number>")
		}
		if err := show(ctx, s, args[0]); err != nil {
			log.Fatalf("ERROR: %v", err)
		}
	default:
		fail(usage)
	}
}

func fail(msg string) {
	fmt.Println(msg)
	os.Exit(1)
}

func createUser(ctx context.Context, s storage.Storage, role models.Role, email, password, name string) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	hash, err := handler.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{FullName: name, Email: email, PasswordHash: hash, Role: role, Language: localization.DefaultLanguage}
	if err := s.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// advance runs a transition through the lifecycle engine. The submitter gets
// an inbox entry; the dispatcher is drained before the CLI exits.
func advance(ctx context.Context, s storage.Storage, number string, req complaint.TransitionRequest) (*models.Complaint, error) {
	dispatcher := notify.NewAsyncDispatcher(1, 8, &notify.InboxChannel{
		Store: s,
		Texts: notify.Texts{Localizer: localization.NewDefault()},
	})
	defer dispatcher.Close()

	svc := complaint.NewService(s, nil, nil, dispatcher)
	c, err := svc.Track(ctx, number)
	if err != nil {
		return nil, err
	}
	return svc.Transition(ctx, c.ID, req)
}

func show(ctx context.Context, s storage.Storage, number string) error {
	svc := complaint.NewService(s, nil, nil, nil)
	c, err := svc.Track(ctx, number)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", c.ComplaintNumber, c.Title)
	fmt.Printf("  status:    %s (priority %s)\n", c.Status, c.Priority)
	fmt.Printf("  submitted: %s\n", c.SubmittedAt.Format("2006-01-02 15:04"))
	if c.ZoneID != nil {
		fmt.Printf("  zone:      %d\n", *c.ZoneID)
	}
	if c.AssignedToID != nil {
		fmt.Printf("  assignee:  %s\n", *c.AssignedToID)
	}

	history, err := svc.History(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, h := range history {
		fmt.Printf("  %s  %s -> %s  %s\n", h.CreatedAt.Format("2006-01-02 15:04"), h.FromStatus, h.ToStatus, h.Notes)
	}
	return nil
}

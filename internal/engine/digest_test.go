package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/aloqahq/aloqa/internal/db"
	"github.com/aloqahq/aloqa/internal/models"
)

func TestNextCronDuration(t *testing.T) {
	if d := nextCronDuration("not a cron expr"); d != 0 {
		t.Errorf("invalid expr duration = %v, want 0", d)
	}
	d := nextCronDuration("0 9 * * *")
	if d <= 0 || d > 24*time.Hour {
		t.Errorf("daily expr duration = %v, want within a day", d)
	}
}

func TestBuildDigest(t *testing.T) {
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	text, err := BuildDigest(gdb)
	if err != nil {
		t.Fatalf("BuildDigest: %v", err)
	}
	if text != "" {
		t.Errorf("empty registry digest = %q, want none", text)
	}

	for _, req := range []models.Request{
		{ID: "req_1_1", RequesterID: 1, ResponderID: 42, Unit: "Engineering", Body: "a", Status: models.StatusPending},
		{ID: "req_1_2", RequesterID: 1, ResponderID: 42, Unit: "Engineering", Body: "b", Status: models.StatusFinished},
	} {
		if err := gdb.Create(&req).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	text, err = BuildDigest(gdb)
	if err != nil {
		t.Fatalf("BuildDigest: %v", err)
	}
	for _, want := range []string{"Daily digest", "Engineering", "pending: 1", "finished: 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
}

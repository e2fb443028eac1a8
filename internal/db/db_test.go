package db

import (
	"strings"
	"testing"

	"github.com/aloqahq/aloqa/internal/config"
	"github.com/aloqahq/aloqa/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DBConfig
		want string
	}{
		{
			name: "no password",
			cfg:  config.DBConfig{User: "root", Host: "127.0.0.1", Port: 3306, Database: "aloqa"},
			want: "root@tcp(127.0.0.1:3306)/aloqa?parseTime=true",
		},
		{
			name: "with password",
			cfg:  config.DBConfig{User: "aloqa", Password: "s3cret", Host: "10.0.0.5", Port: 3307, Database: "aloqa_prod"},
			want: "aloqa:s3cret@tcp(10.0.0.5:3307)/aloqa_prod?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DBConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %v, want unsupported driver", err)
	}
}

func TestOpenMemory_Migrates(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}

	for _, m := range AllModels() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}

func TestOpenMemory_RoundTrip(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}

	req := models.Request{
		ID:          "req_100_1700000000000",
		RequesterID: 100,
		ResponderID: 42,
		Unit:        "Engineering",
		Body:        "Need help with enrollment",
		Status:      models.StatusPending,
	}
	if err := db.Create(&req).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}

	var got models.Request
	if err := db.First(&got, "id = ?", req.ID).Error; err != nil {
		t.Fatalf("read back request: %v", err)
	}
	if got.Unit != "Engineering" || got.ResponderID != 42 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

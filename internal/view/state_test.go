package view

import (
	"errors"
	"testing"

	"github.com/kitbuilder587/abn-search/internal/domain"
	"github.com/kitbuilder587/abn-search/internal/query"
)

func TestSelect(t *testing.T) {
	one := domain.NewSearchResponse("acme", []domain.ABNEntity{{ABN: "51824753556", Name: "Acme"}})
	none := domain.NewSearchResponse("zzz", nil)

	tests := []struct {
		name      string
		submitted string
		result    query.Result
		want      State
	}{
		{"nothing submitted", "", query.Result{}, StateIdle},
		{"nothing submitted ignores stale result", "", query.Result{Status: query.StatusSuccess, Data: one}, StateIdle},
		{"submitted not started", "acme", query.Result{Status: query.StatusIdle}, StateLoading},
		{"pending", "acme", query.Result{Status: query.StatusPending}, StateLoading},
		{"error", "acme", query.Result{Status: query.StatusError, Err: domain.NetworkError(errors.New("x"))}, StateError},
		{"empty", "zzz", query.Result{Status: query.StatusSuccess, Data: none}, StateEmpty},
		{"success without data", "zzz", query.Result{Status: query.StatusSuccess}, StateEmpty},
		{"results", "acme", query.Result{Status: query.StatusSuccess, Data: one}, StateResults},
		{"refetching keeps results", "acme", query.Result{Status: query.StatusSuccess, Data: one, Fetching: true}, StateResults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Select(tt.submitted, tt.result); got != tt.want {
				t.Errorf("Select() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewCard(t *testing.T) {
	e := domain.ABNEntity{
		ABN:              "51824753556",
		Name:             "Example Pty Ltd",
		EntityType:       "Australian Private Company",
		Status:           domain.StatusActive,
		RegistrationDate: "2000-01-02",
		GST:              &domain.GSTRegistration{Registered: true, RegistrationDate: "2000-07-01"},
		Address:          &domain.Address{State: "NSW", Postcode: "2000"},
	}

	c := NewCard(e)

	if c.ABN != "51 824 753 556" {
		t.Errorf("ABN = %q", c.ABN)
	}
	if !c.Active || c.Status != "Active" {
		t.Errorf("Status = %q, Active = %v", c.Status, c.Active)
	}
	if c.Registered != "2 January 2000" {
		t.Errorf("Registered = %q", c.Registered)
	}
	if c.Location != "NSW 2000" {
		t.Errorf("Location = %q", c.Location)
	}
	if !c.HasGST || c.GSTLine != "GST Registered" {
		t.Errorf("GST = %v/%q", c.HasGST, c.GSTLine)
	}
}

func TestNewCard_OptionalParts(t *testing.T) {
	c := NewCard(domain.ABNEntity{ABN: "53004085616", Name: "Old Co", Status: domain.StatusCancelled})

	if c.Active {
		t.Error("cancelled entity must not be active")
	}
	if c.HasGST || c.Location != "" {
		t.Errorf("optional parts should be empty, got %+v", c)
	}

	c = NewCard(domain.ABNEntity{ABN: "53004085616", GST: &domain.GSTRegistration{}})
	if c.GSTLine != "Not registered for GST" {
		t.Errorf("GSTLine = %q", c.GSTLine)
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2000-01-02", "2 January 2000"},
		{"2019-11-30T00:00:00Z", "30 November 2019"},
		{"20150630", "30 June 2015"},
		{"", ""},
		{"sometime", "sometime"},
	}

	for _, tt := range tests {
		if got := FormatDate(tt.in); got != tt.want {
			t.Errorf("FormatDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	if got := Summary(1, "acme"); got != `Found 1 result for "acme"` {
		t.Errorf("Summary(1) = %s", got)
	}
	if got := Summary(3, "acme"); got != `Found 3 results for "acme"` {
		t.Errorf("Summary(3) = %s", got)
	}
}

func TestErrorMessage(t *testing.T) {
	if got := ErrorMessage(domain.NewAPIError(domain.CodeNotFound, "No match", 404)); got != "No match" {
		t.Errorf("ErrorMessage() = %q", got)
	}
	if got := ErrorMessage(domain.NewAPIError(domain.CodeInternal, "", 500)); got != ErrorFallback {
		t.Errorf("ErrorMessage(empty) = %q, want fallback", got)
	}
	if got := ErrorMessage(nil); got != ErrorFallback {
		t.Errorf("ErrorMessage(nil) = %q, want fallback", got)
	}
}

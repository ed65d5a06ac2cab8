package view

import (
	"strings"
	"time"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

const (
	gstRegistered    = "GST Registered"
	gstNotRegistered = "Not registered for GST"
)

// Card - карточка результата, уже отформатированная для вывода.
type Card struct {
	Name       string
	ABN        string
	Status     string
	Active     bool
	EntityType string
	Registered string
	Location   string
	HasGST     bool
	GSTActive  bool
	GSTLine    string
}

func NewCard(e domain.ABNEntity) Card {
	c := Card{
		Name:       e.Name,
		ABN:        domain.FormatABN(e.ABN),
		Status:     string(e.Status),
		Active:     e.IsActive(),
		EntityType: e.EntityType,
		Registered: FormatDate(e.RegistrationDate),
	}

	if e.Address != nil {
		c.Location = strings.TrimSpace(e.Address.State + " " + e.Address.Postcode)
	}

	if e.GST != nil {
		c.HasGST = true
		c.GSTActive = e.GST.Registered
		c.GSTLine = gstNotRegistered
		if e.GST.Registered {
			c.GSTLine = gstRegistered
		}
	}

	return c
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "20060102"}

// FormatDate - длинная дата en-AU: "2 January 2006". Нераспознанное возвращаем как есть.
func FormatDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2 January 2006")
		}
	}
	return s
}

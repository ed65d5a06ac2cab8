package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kitbuilder587/abn-search/internal/domain"
	pgRepo "github.com/kitbuilder587/abn-search/internal/repository/postgres"
)

var testDB *pgRepo.DB

func TestMain(m *testing.M) {
	if os.Getenv("SHORT_TESTS") == "1" {
		os.Exit(0)
	}

	ctx := context.Background()

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("abn_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic(err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	testDB, err = pgRepo.New(ctx, connStr)
	if err != nil {
		panic(err)
	}

	// миграция идемпотентна: второй прогон не должен падать
	for i := 0; i < 2; i++ {
		if err := testDB.Migrate(ctx); err != nil {
			panic(err)
		}
	}

	code := m.Run()

	testDB.Close()
	pgContainer.Terminate(ctx)

	os.Exit(code)
}

func resetDB(t *testing.T) {
	t.Helper()
	if _, err := testDB.Pool.Exec(context.Background(), `TRUNCATE abn_records CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func fixtureRecords() []domain.ABRRecord {
	return []domain.ABRRecord{
		{
			ABN:                   "51824753556",
			Status:                "ACT",
			StatusFromDate:        "19991101",
			RecordLastUpdatedDate: "20240115",
			EntityTypeInd:         "PRV",
			EntityTypeText:        "Australian Private Company",
			MainEntity:            &domain.EntityName{Type: "MN", Text: "Example Pty Ltd"},
			ASICNumber:            "824753556",
			GST:                   &domain.GSTStatus{Status: "ACT", StatusFromDate: "20000701"},
			BusinessAddress:       &domain.BusinessAddress{StateCode: "NSW", Postcode: "2000"},
			DGR:                   []domain.DGREntry{{StatusFromDate: "20100101", Status: "ACT", Type: "DGR", Text: "Example Fund"}},
			OtherNames:            []domain.EntityName{{Type: "TRD", Text: "Example Trading"}},
		},
		{
			ABN:                   "53004085616",
			Status:                "CAN",
			StatusFromDate:        "20150630",
			RecordLastUpdatedDate: "20150630",
			EntityTypeInd:         "PUB",
			EntityTypeText:        "Australian Public Company",
			MainEntity:            &domain.EntityName{Type: "MN", Text: "Example Holdings Limited"},
			GST:                   &domain.GSTStatus{Status: "CAN", StatusFromDate: "20150630"},
			BusinessAddress:       &domain.BusinessAddress{StateCode: "VIC", Postcode: "3000"},
		},
		{
			ABN:                   "12345678901",
			Status:                "ACT",
			StatusFromDate:        "20120301",
			RecordLastUpdatedDate: "20230101",
			EntityTypeInd:         "IND",
			EntityTypeText:        "Individual/Sole Trader",
			LegalEntity:           &domain.PersonName{Type: "LGL", GivenName1: "Jane", GivenName2: "Mary", FamilyName: "Citizen"},
			BusinessAddress:       &domain.BusinessAddress{StateCode: "QLD", Postcode: "4000"},
		},
		{
			ABN:                   "98765432109",
			Status:                "ACT",
			StatusFromDate:        "20200101",
			RecordLastUpdatedDate: "20200101",
			EntityTypeText:        "Other Incorporated Entity",
			MainEntity:            &domain.EntityName{Type: "MN", Text: "100% Widgets_Co"},
		},
	}
}

func seed(t *testing.T, records []domain.ABRRecord) {
	t.Helper()
	if err := pgRepo.NewRecordRepo(testDB).UpsertBatch(context.Background(), records); err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}
}

func abns(entities []domain.ABNEntity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.ABN
	}
	return out
}

func TestABNRepository_Search(t *testing.T) {
	resetDB(t)
	seed(t, fixtureRecords())
	repo := pgRepo.NewABNRepo(testDB)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"main name, active first", "example", []string{"51824753556", "53004085616"}},
		{"case insensitive", "EXAMPLE HOLDINGS", []string{"53004085616"}},
		{"other entity name", "trading", []string{"51824753556"}},
		{"person full name", "mary citizen", []string{"12345678901"}},
		{"abn with spaces", "51 824 753 556", []string{"51824753556"}},
		{"unknown abn", "11111111111", []string{}},
		{"percent is literal", "%", []string{"98765432109"}},
		{"underscore is literal", "_", []string{"98765432109"}},
		{"no match", "zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Search(context.Background(), tt.query, 20)
			if err != nil {
				t.Fatalf("Search(%q) error = %v", tt.query, err)
			}
			if got == nil {
				t.Fatal("Search() returned nil slice")
			}
			gotABNs := abns(got)
			if len(gotABNs) != len(tt.want) {
				t.Fatalf("Search(%q) = %v, want %v", tt.query, gotABNs, tt.want)
			}
			for i := range tt.want {
				if gotABNs[i] != tt.want[i] {
					t.Errorf("Search(%q)[%d] = %s, want %s", tt.query, i, gotABNs[i], tt.want[i])
				}
			}
		})
	}
}

func TestABNRepository_SearchLimit(t *testing.T) {
	resetDB(t)
	seed(t, fixtureRecords())

	got, err := pgRepo.NewABNRepo(testDB).Search(context.Background(), "example", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ABN != "51824753556" {
		t.Errorf("Search() = %v, want only the active record", abns(got))
	}
}

func TestABNRepository_GetByABN(t *testing.T) {
	resetDB(t)
	seed(t, fixtureRecords())
	repo := pgRepo.NewABNRepo(testDB)
	ctx := context.Background()

	e, err := repo.GetByABN(ctx, "51824753556")
	if err != nil {
		t.Fatalf("GetByABN() error = %v", err)
	}
	if e.Name != "Example Pty Ltd" || e.Status != domain.StatusActive {
		t.Errorf("entity = %+v", e)
	}
	if e.EntityType != "Australian Private Company" || e.RegistrationDate != "1999-11-01" {
		t.Errorf("type/date = %q/%q", e.EntityType, e.RegistrationDate)
	}
	if e.GST == nil || !e.GST.Registered || e.GST.RegistrationDate != "2000-07-01" {
		t.Errorf("GST = %+v", e.GST)
	}
	if e.Address == nil || e.Address.State != "NSW" || e.Address.Postcode != "2000" {
		t.Errorf("Address = %+v", e.Address)
	}

	cancelled, err := repo.GetByABN(ctx, "53004085616")
	if err != nil {
		t.Fatalf("GetByABN() error = %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("Status = %s, want Cancelled", cancelled.Status)
	}
	if cancelled.GST == nil || cancelled.GST.Registered {
		t.Errorf("cancelled GST = %+v, want not registered", cancelled.GST)
	}

	person, err := repo.GetByABN(ctx, "12 345 678 901")
	if err != nil {
		t.Fatalf("GetByABN() error = %v", err)
	}
	if person.Name != "Jane Mary Citizen" {
		t.Errorf("person name = %q", person.Name)
	}
	if person.GST != nil {
		t.Errorf("person GST = %+v, want nil", person.GST)
	}

	bare, err := repo.GetByABN(ctx, "98765432109")
	if err != nil {
		t.Fatalf("GetByABN() error = %v", err)
	}
	if bare.Address != nil {
		t.Errorf("Address = %+v, want nil without business address", bare.Address)
	}

	_, err = repo.GetByABN(ctx, "11111111111")
	if !errors.Is(err, domain.ErrABNNotFound) {
		t.Errorf("GetByABN(missing) error = %v, want ErrABNNotFound", err)
	}
}

func TestRecordStore_UpsertReplacesChildren(t *testing.T) {
	resetDB(t)
	seed(t, fixtureRecords())
	ctx := context.Background()

	updated := fixtureRecords()[0]
	updated.Status = "CAN"
	updated.MainEntity = &domain.EntityName{Type: "MN", Text: "Example Renamed Pty Ltd"}
	updated.DGR = nil
	updated.OtherNames = []domain.EntityName{{Type: "BN", Text: "Example Retail"}}
	seed(t, []domain.ABRRecord{updated})

	var dgr, names int
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM dgr_entries WHERE abn = $1`, updated.ABN).Scan(&dgr); err != nil {
		t.Fatalf("count dgr: %v", err)
	}
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM other_entity_names WHERE abn = $1`, updated.ABN).Scan(&names); err != nil {
		t.Fatalf("count other names: %v", err)
	}
	if dgr != 0 || names != 1 {
		t.Errorf("dgr = %d, other names = %d; want 0 and 1", dgr, names)
	}

	repo := pgRepo.NewABNRepo(testDB)
	e, err := repo.GetByABN(ctx, updated.ABN)
	if err != nil {
		t.Fatalf("GetByABN() error = %v", err)
	}
	if e.Name != "Example Renamed Pty Ltd" || e.Status != domain.StatusCancelled {
		t.Errorf("entity after re-upsert = %+v", e)
	}

	if got, _ := repo.Search(ctx, "trading", 20); len(got) != 0 {
		t.Errorf("old other name still matches: %v", abns(got))
	}
	if got, _ := repo.Search(ctx, "retail", 20); len(got) != 1 {
		t.Errorf("new other name not found: %v", abns(got))
	}

	var total int
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM abn_records`).Scan(&total); err != nil {
		t.Fatalf("count records: %v", err)
	}
	if total != len(fixtureRecords()) {
		t.Errorf("records = %d, want %d", total, len(fixtureRecords()))
	}
}

func TestRecordStore_EmptyBatch(t *testing.T) {
	resetDB(t)

	if err := pgRepo.NewRecordRepo(testDB).UpsertBatch(context.Background(), nil); err != nil {
		t.Errorf("UpsertBatch(nil) error = %v", err)
	}
}

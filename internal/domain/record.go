package domain

// ABRRecord - одна запись <ABR> из bulk-выгрузки, нормализованная под таблицы БД.
type ABRRecord struct {
	ABN                   string `validate:"required,len=11,numeric"`
	Status                string `validate:"required"`
	StatusFromDate        string `validate:"required"`
	RecordLastUpdatedDate string `validate:"required"`
	EntityTypeInd         string
	EntityTypeText        string

	MainEntity      *EntityName `validate:"omitempty"`
	LegalEntity     *PersonName `validate:"omitempty"`
	ASICNumber      string
	GST             *GSTStatus       `validate:"omitempty"`
	BusinessAddress *BusinessAddress `validate:"omitempty"`
	DGR             []DGREntry       `validate:"dive"`
	OtherNames      []EntityName     `validate:"dive"`
}

type EntityName struct {
	Type string
	Text string
}

type PersonName struct {
	Type       string
	Title      string
	GivenName1 string
	GivenName2 string
	FamilyName string
}

func (p *PersonName) FullName() string {
	name := ""
	for _, part := range []string{p.GivenName1, p.GivenName2, p.FamilyName} {
		if part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += part
	}
	return name
}

type GSTStatus struct {
	Status         string `validate:"required"`
	StatusFromDate string
}

type BusinessAddress struct {
	StateCode string
	Postcode  string
}

type DGREntry struct {
	StatusFromDate string `validate:"required"`
	Status         string
	Type           string
	Text           string
}

// DisplayName - основное имя: название организации или ФИО физлица.
func (r *ABRRecord) DisplayName() string {
	if r.MainEntity != nil && r.MainEntity.Text != "" {
		return r.MainEntity.Text
	}
	if r.LegalEntity != nil {
		return r.LegalEntity.FullName()
	}
	return ""
}

package ingest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/encoding/charmap"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

var validate = validator.New()

// errStop - колбэк просит прекратить разбор (набран sample).
var errStop = errors.New("stop parsing")

type xmlABR struct {
	RecordLastUpdatedDate string `xml:"recordLastUpdatedDate,attr"`

	ABN struct {
		Value          string `xml:",chardata"`
		Status         string `xml:"status,attr"`
		StatusFromDate string `xml:"ABNStatusFromDate,attr"`
	} `xml:"ABN"`

	EntityType struct {
		Ind  string `xml:"EntityTypeInd"`
		Text string `xml:"EntityTypeText"`
	} `xml:"EntityType"`

	MainEntity  *xmlMainEntity  `xml:"MainEntity"`
	LegalEntity *xmlLegalEntity `xml:"LegalEntity"`
	ASICNumber  *string         `xml:"ASICNumber"`

	GST *struct {
		Status         string `xml:"status,attr"`
		StatusFromDate string `xml:"GSTStatusFromDate,attr"`
	} `xml:"GST"`

	DGR []struct {
		StatusFromDate string                `xml:"DGRStatusFromDate,attr"`
		Status         string                `xml:"status,attr"`
		Name           *xmlNonIndividualName `xml:"NonIndividualName"`
	} `xml:"DGR"`

	OtherEntity []struct {
		Name *xmlNonIndividualName `xml:"NonIndividualName"`
	} `xml:"OtherEntity"`
}

type xmlNonIndividualName struct {
	Type string `xml:"type,attr"`
	Text string `xml:"NonIndividualNameText"`
}

type xmlBusinessAddress struct {
	Details *struct {
		State    string `xml:"State"`
		Postcode string `xml:"Postcode"`
	} `xml:"AddressDetails"`
}

type xmlMainEntity struct {
	Name    *xmlNonIndividualName `xml:"NonIndividualName"`
	Address *xmlBusinessAddress   `xml:"BusinessAddress"`
}

type xmlLegalEntity struct {
	Individual *struct {
		Type       string   `xml:"type,attr"`
		Title      string   `xml:"NameTitle"`
		GivenNames []string `xml:"GivenName"`
		FamilyName string   `xml:"FamilyName"`
	} `xml:"IndividualName"`
	Address *xmlBusinessAddress `xml:"BusinessAddress"`
}

type ParseStats struct {
	Parsed  int
	Invalid int
}

// ParseRecords потоково читает выгрузку ABR и отдает в fn по одной записи <ABR>.
// Записи без ABN из 11 цифр и не прошедшие валидацию пропускаются и считаются в Invalid.
// Если fn вернул ошибку, разбор останавливается с ней.
func ParseRecords(r io.Reader, fn func(domain.ABRRecord) error) (ParseStats, error) {
	var stats ParseStats

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "ABR" {
			continue
		}

		var raw xmlABR
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return stats, fmt.Errorf("decode ABR element: %w", err)
		}

		rec, ok := raw.toRecord()
		if !ok || validate.Struct(rec) != nil {
			stats.Invalid++
			continue
		}

		stats.Parsed++
		if err := fn(rec); err != nil {
			return stats, err
		}
	}
}

func (x *xmlABR) toRecord() (domain.ABRRecord, bool) {
	abn := domain.NormalizeABN(x.ABN.Value)
	if len(abn) != domain.ABNLength {
		return domain.ABRRecord{}, false
	}

	rec := domain.ABRRecord{
		ABN:                   abn,
		Status:                strings.TrimSpace(x.ABN.Status),
		StatusFromDate:        strings.TrimSpace(x.ABN.StatusFromDate),
		RecordLastUpdatedDate: strings.TrimSpace(x.RecordLastUpdatedDate),
		EntityTypeInd:         strings.TrimSpace(x.EntityType.Ind),
		EntityTypeText:        strings.TrimSpace(x.EntityType.Text),
	}

	if x.MainEntity != nil && x.MainEntity.Name != nil {
		rec.MainEntity = x.MainEntity.Name.toEntityName()
	}

	if x.LegalEntity != nil && x.LegalEntity.Individual != nil {
		ind := x.LegalEntity.Individual
		p := &domain.PersonName{
			Type:       strings.TrimSpace(ind.Type),
			Title:      strings.TrimSpace(ind.Title),
			FamilyName: strings.TrimSpace(ind.FamilyName),
		}
		if len(ind.GivenNames) > 0 {
			p.GivenName1 = strings.TrimSpace(ind.GivenNames[0])
		}
		if len(ind.GivenNames) > 1 {
			p.GivenName2 = strings.TrimSpace(ind.GivenNames[1])
		}
		rec.LegalEntity = p
	}

	// адрес основной сущности, если его нет - физлица
	var addr *xmlBusinessAddress
	if x.MainEntity != nil {
		addr = x.MainEntity.Address
	}
	if addr == nil && x.LegalEntity != nil {
		addr = x.LegalEntity.Address
	}
	if addr != nil && addr.Details != nil {
		rec.BusinessAddress = &domain.BusinessAddress{
			StateCode: strings.TrimSpace(addr.Details.State),
			Postcode:  strings.TrimSpace(addr.Details.Postcode),
		}
	}

	if x.ASICNumber != nil {
		rec.ASICNumber = strings.TrimSpace(*x.ASICNumber)
	}

	if x.GST != nil {
		rec.GST = &domain.GSTStatus{
			Status:         strings.TrimSpace(x.GST.Status),
			StatusFromDate: strings.TrimSpace(x.GST.StatusFromDate),
		}
	}

	for _, d := range x.DGR {
		entry := domain.DGREntry{
			StatusFromDate: strings.TrimSpace(d.StatusFromDate),
			Status:         strings.TrimSpace(d.Status),
		}
		if d.Name != nil {
			entry.Type = strings.TrimSpace(d.Name.Type)
			entry.Text = strings.TrimSpace(d.Name.Text)
		}
		rec.DGR = append(rec.DGR, entry)
	}

	for _, o := range x.OtherEntity {
		if o.Name != nil {
			rec.OtherNames = append(rec.OtherNames, *o.Name.toEntityName())
		}
	}

	return rec, true
}

func (n *xmlNonIndividualName) toEntityName() *domain.EntityName {
	return &domain.EntityName{
		Type: strings.TrimSpace(n.Type),
		Text: strings.TrimSpace(n.Text),
	}
}

// выгрузка может объявлять однобайтовую кодировку
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported xml charset %q", label)
	}
}

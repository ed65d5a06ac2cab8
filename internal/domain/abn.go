package domain

import (
	"strings"
	"unicode"
)

const ABNLength = 11

type Status string

const (
	StatusActive    Status = "Active"
	StatusCancelled Status = "Cancelled"
	StatusInactive  Status = "Inactive"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCancelled, StatusInactive:
		return true
	}
	return false
}

// StatusFromRegistry переводит код статуса из выгрузки ABR (ACT, CAN, ...)
func StatusFromRegistry(code string) Status {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "ACT":
		return StatusActive
	case "CAN":
		return StatusCancelled
	default:
		return StatusInactive
	}
}

type GSTRegistration struct {
	Registered       bool   `json:"registered"`
	RegistrationDate string `json:"registrationDate,omitempty"`
}

type Address struct {
	State    string `json:"state"`
	Postcode string `json:"postcode"`
}

type ABNEntity struct {
	ABN              string           `json:"abn"`
	Name             string           `json:"name"`
	EntityType       string           `json:"entityType"`
	Status           Status           `json:"status"`
	RegistrationDate string           `json:"registrationDate"`
	GST              *GSTRegistration `json:"gst,omitempty"`
	Address          *Address         `json:"address,omitempty"`
}

func (e ABNEntity) IsActive() bool {
	return e.Status == StatusActive
}

// NormalizeABN убирает пробелы: "51 824 753 556" -> "51824753556"
func NormalizeABN(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func IsABN(s string) bool {
	n := NormalizeABN(s)
	if len(n) != ABNLength {
		return false
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var abnWeights = [ABNLength]int{10, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19}

// ValidateABNChecksum - проверка по модулю 89 (алгоритм ABR).
func ValidateABNChecksum(s string) bool {
	if !IsABN(s) {
		return false
	}
	n := NormalizeABN(s)

	sum := 0
	for i := 0; i < ABNLength; i++ {
		d := int(n[i] - '0')
		if i == 0 {
			d--
		}
		sum += d * abnWeights[i]
	}
	return sum%89 == 0
}

// FormatABN форматирует 11 цифр как "NN NNN NNN NNN", остальное возвращает как есть.
func FormatABN(abn string) string {
	if len(abn) != ABNLength || !IsABN(abn) {
		return abn
	}
	return abn[:2] + " " + abn[2:5] + " " + abn[5:8] + " " + abn[8:]
}

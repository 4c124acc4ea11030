package models

import "time"

// Режимы доставки (совпадают с обозначениями в таблицах).
const (
	CargoModeAvia = "AVIA"
	CargoModeAvto = "AVTO"
)

type TrackingEvent struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Status    string `json:"status"`
	Location  string `json:"location"`
	Completed bool   `json:"completed"`
}

// Parcel собирается заново при каждом поиске по листам рейсов,
// на сервере не хранится.
type Parcel struct {
	ID       string          `json:"id"`
	Sender   string          `json:"sender"`
	Receiver string          `json:"receiver"`
	Weight   string          `json:"weight"`
	BoxCode  string          `json:"boxCode,omitempty"`
	Price    float64         `json:"price,omitempty"`
	History  []TrackingEvent `json:"history"`
}

type SavedTrack struct {
	ID      string    `json:"id"`
	Note    string    `json:"note,omitempty"`
	AddedAt time.Time `json:"addedAt"`
}

type UserProfile struct {
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	ClientID     string    `json:"clientId"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type RatePair struct {
	Standard float64 `json:"standard"`
	Bulk     float64 `json:"bulk"`
}

type Prices struct {
	Avto RatePair `json:"avto"`
	Avia RatePair `json:"avia"`
}

type AppSettings struct {
	ExchangeRate float64 `json:"exchangeRate"`
	Prices       Prices  `json:"prices"`
}

// DefaultAppSettings — стартовые тарифы, пока лист настроек не синхронизирован.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		ExchangeRate: 12200,
		Prices: Prices{
			Avto: RatePair{Standard: 6.0, Bulk: 7.5},
			Avia: RatePair{Standard: 9.5, Bulk: 11.0},
		},
	}
}

// ClientActivity — строка клиентского листа для админской панели.
type ClientActivity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ClientID     string `json:"clientId"`
	Phone        string `json:"phone"`
	LastActive   string `json:"lastActive,omitempty"`
	ParcelsCount int    `json:"parcelsCount,omitempty"`
}

// ArrivedSet — номера прибывших рейсов, отдельно по авиа и авто.
type ArrivedSet struct {
	Avia map[string]struct{} `json:"-"`
	Avto map[string]struct{} `json:"-"`
}

func NewArrivedSet() ArrivedSet {
	return ArrivedSet{
		Avia: map[string]struct{}{},
		Avto: map[string]struct{}{},
	}
}

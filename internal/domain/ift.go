package domain

import (
	"fmt"
	"math"
)

// IFTDetail is one treatment's contribution to the period index.
type IFTDetail struct {
	Date    string  `json:"date"`
	Parcel  string  `json:"parcelle"`
	Product string  `json:"produit"`
	IFT     float64 `json:"ift"`
}

// IFTSummary aggregates the treatment frequency index over a period.
type IFTSummary struct {
	Total   float64     `json:"ift_total"`
	Count   int         `json:"nb_traitements"`
	Details []IFTDetail `json:"details,omitempty"`
	Period  string      `json:"periode,omitempty"`
}

// ComputeIFT computes the Indice de Fréquence de Traitement for all
// treatments dated within [start, end]: each application contributes its
// applied dose divided by the product's reference dose, so one full-dose
// pass counts exactly 1.
func ComputeIFT(treatments []Treatment, start, end string) IFTSummary {
	summary := IFTSummary{Period: fmt.Sprintf("%s à %s", start, end)}
	for _, t := range treatments {
		if t.Date < start || t.Date > end {
			continue
		}
		ref := t.Characteristics.ReferenceDoseKgHa
		if ref == 0 {
			ref = 1.0
		}
		ift := t.DoseKgHa / ref
		summary.Total += ift
		summary.Count++
		summary.Details = append(summary.Details, IFTDetail{
			Date:    t.Date,
			Parcel:  t.Parcel,
			Product: t.Characteristics.Name,
			IFT:     round2(ift),
		})
	}
	summary.Total = round2(summary.Total)
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

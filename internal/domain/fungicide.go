package domain

// ProductType describes how a fungicide acts and therefore how it decays.
// Contact and penetrant products sit on or just under the leaf surface and
// get diluted by new growth; systemics circulate in the sap and are exempt
// from growth dilution.
type ProductType string

const (
	ProductContact   ProductType = "contact"
	ProductPenetrant ProductType = "penetrant"
	ProductSystemic  ProductType = "systemique"
)

// Fungicide is the static characteristics of one product.
type Fungicide struct {
	Name                string      `json:"nom"`
	Type                ProductType `json:"type"`
	PersistenceDays     int         `json:"persistance_jours"`
	LeachingThresholdMM float64     `json:"lessivage_seuil_mm"`
	ReferenceDoseKgHa   float64     `json:"dose_reference_kg_ha"`
}

// fungicides is the reference catalog, keyed by product code.
var fungicides = map[string]Fungicide{
	"bouillie_bordelaise": {Name: "Bouillie bordelaise", Type: ProductContact, PersistenceDays: 10, LeachingThresholdMM: 30, ReferenceDoseKgHa: 2.0},
	"cymoxanil":           {Name: "Cymoxanil", Type: ProductPenetrant, PersistenceDays: 7, LeachingThresholdMM: 20, ReferenceDoseKgHa: 0.5},
	"fosetyl_al":          {Name: "Fosétyl-Al", Type: ProductSystemic, PersistenceDays: 14, LeachingThresholdMM: 40, ReferenceDoseKgHa: 2.5},
	"mancozebe":           {Name: "Mancozèbe", Type: ProductContact, PersistenceDays: 7, LeachingThresholdMM: 25, ReferenceDoseKgHa: 1.6},
	"soufre":              {Name: "Soufre", Type: ProductContact, PersistenceDays: 8, LeachingThresholdMM: 15, ReferenceDoseKgHa: 3.0},
}

// CatalogLookup returns the catalog entry for a product code.
func CatalogLookup(code string) (Fungicide, bool) {
	f, ok := fungicides[code]
	return f, ok
}

// DefaultFungicide returns conservative characteristics for a product absent
// from the catalog; recording such a treatment succeeds with these defaults
// rather than failing.
func DefaultFungicide(name string) Fungicide {
	return Fungicide{
		Name:                name,
		Type:                ProductContact,
		PersistenceDays:     7,
		LeachingThresholdMM: 25,
		ReferenceDoseKgHa:   1.0,
	}
}

// Treatment is one recorded application. Characteristics snapshot the
// product at application time, so later catalog changes never rewrite
// history. The treatment log is append-only.
type Treatment struct {
	Parcel          string    `json:"parcelle"`
	Date            string    `json:"date"`
	Product         string    `json:"produit"`
	DoseKgHa        float64   `json:"dose_kg_ha"`
	Characteristics Fungicide `json:"caracteristiques"`
}

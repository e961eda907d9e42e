package domain

type BloodGroup string

const (
	BloodGroupAPos  BloodGroup = "A+"
	BloodGroupANeg  BloodGroup = "A-"
	BloodGroupBPos  BloodGroup = "B+"
	BloodGroupBNeg  BloodGroup = "B-"
	BloodGroupABPos BloodGroup = "AB+"
	BloodGroupABNeg BloodGroup = "AB-"
	BloodGroupOPos  BloodGroup = "O+"
	BloodGroupONeg  BloodGroup = "O-"
)

func (b BloodGroup) Valid() bool {
	switch b {
	case BloodGroupAPos, BloodGroupANeg, BloodGroupBPos, BloodGroupBNeg,
		BloodGroupABPos, BloodGroupABNeg, BloodGroupOPos, BloodGroupONeg:
		return true
	}
	return false
}

// GeoPartitionLength is the number of leading geohash characters that form the
// coarse partition a donor location is indexed under.
const GeoPartitionLength = 4

// DonorLocation is one preferred donation area of a donor.
type DonorLocation struct {
	UserID               string     `json:"userId"`
	LocationID           string     `json:"locationId"`
	Area                 string     `json:"area,omitempty"`
	CountryCode          string     `json:"countryCode"`
	GeoPartition         string     `json:"geoPartition"`
	Geohash              string     `json:"geohash"`
	BloodGroup           BloodGroup `json:"bloodGroup"`
	AvailableForDonation bool       `json:"availableForDonation"`
	LastVaccinatedDate   string     `json:"lastVaccinatedDate,omitempty"`
	CreatedAt            string     `json:"createdAt,omitempty"`
}

// PartitionOf returns the geo-partition of a geohash.
func PartitionOf(geohash string) string {
	if len(geohash) <= GeoPartitionLength {
		return geohash
	}
	return geohash[:GeoPartitionLength]
}

type RegisterLocationRequest struct {
	Area                 string     `json:"area" validate:"required"`
	CountryCode          string     `json:"countryCode" validate:"required,len=2"`
	Latitude             float64    `json:"latitude" validate:"latitude"`
	Longitude            float64    `json:"longitude" validate:"longitude"`
	BloodGroup           BloodGroup `json:"bloodGroup" validate:"required,bloodgroup"`
	AvailableForDonation bool       `json:"availableForDonation"`
	LastVaccinatedDate   string     `json:"lastVaccinatedDate" validate:"omitempty,datetime=2006-01-02"`
}

// EligibleDonor is the proximity context attached to a donor selected for a request.
type EligibleDonor struct {
	LocationID string  `json:"locationId"`
	Distance   float64 `json:"distance"`
}

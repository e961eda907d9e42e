package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-blood-connect/internal/domain"
)

const (
	userPrefix     = "USER"
	locationPrefix = "LOCATION"
)

// The proximity cell joins country and geo-partition with "-", so both are
// escaped to keep that separator unambiguous.
var (
	cellEscaper   = strings.NewReplacer("%", "%25", "-", "%2D")
	cellUnescaper = strings.NewReplacer("%2D", "-", "%25", "%")
)

type locationItem struct {
	PK                   string `dynamodbav:"PK"`
	SK                   string `dynamodbav:"SK"`
	GSI1PK               string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK               string `dynamodbav:"GSI1SK,omitempty"`
	Area                 string `dynamodbav:"area,omitempty"`
	CountryCode          string `dynamodbav:"countryCode,omitempty"`
	GeoPartition         string `dynamodbav:"geoPartition,omitempty"`
	Geohash              string `dynamodbav:"geohash,omitempty"`
	BloodGroup           string `dynamodbav:"bloodGroup,omitempty"`
	AvailableForDonation bool   `dynamodbav:"availableForDonation"`
	LastVaccinatedDate   string `dynamodbav:"lastVaccinatedDate,omitempty"`
	CreatedAt            string `dynamodbav:"createdAt,omitempty"`
}

type locationAdapter struct{ tableIndexes }

func newLocationAdapter() locationAdapter {
	return locationAdapter{tableIndexes{gsi1Index}}
}

// locationPartition is the proximity bucket a donor location is indexed under.
func locationPartition(country, geoPartition string, bg domain.BloodGroup, available bool) string {
	cell := escapeKey(cellEscaper.Replace(country) + "-" + cellEscaper.Replace(geoPartition))
	return locationPrefix + keySep + cell + keySep + joinKey("BG", string(bg), "AVAILABLE", strconv.FormatBool(available))
}

func (locationAdapter) FromDomain(l domain.DonorLocation) (locationItem, error) {
	if err := requireKeyParts("location", l.UserID, l.LocationID); err != nil {
		return locationItem{}, err
	}
	if l.GeoPartition == "" {
		l.GeoPartition = domain.PartitionOf(l.Geohash)
	}
	item := locationItem{
		PK:                   joinKey(userPrefix, l.UserID),
		SK:                   joinKey(locationPrefix, l.LocationID),
		Area:                 l.Area,
		CountryCode:          l.CountryCode,
		GeoPartition:         l.GeoPartition,
		Geohash:              l.Geohash,
		BloodGroup:           string(l.BloodGroup),
		AvailableForDonation: l.AvailableForDonation,
		LastVaccinatedDate:   l.LastVaccinatedDate,
		CreatedAt:            l.CreatedAt,
	}
	if l.CountryCode != "" && l.BloodGroup != "" && l.Geohash != "" {
		item.GSI1PK = locationPartition(l.CountryCode, l.GeoPartition, l.BloodGroup, l.AvailableForDonation)
		item.GSI1SK = escapeKey(l.Geohash)
	}
	return item, nil
}

// ToDomain rebuilds the location from the key attributes alone when the
// item was read through a keys-only projection.
func (locationAdapter) ToDomain(item locationItem) (domain.DonorLocation, error) {
	pk, err := parseKey(item.PK, userPrefix, "")
	if err != nil {
		return domain.DonorLocation{}, err
	}
	sk, err := parseKey(item.SK, locationPrefix, "")
	if err != nil {
		return domain.DonorLocation{}, err
	}
	l := domain.DonorLocation{
		UserID:               pk[0],
		LocationID:           sk[0],
		Area:                 item.Area,
		CountryCode:          item.CountryCode,
		GeoPartition:         item.GeoPartition,
		Geohash:              item.Geohash,
		BloodGroup:           domain.BloodGroup(item.BloodGroup),
		AvailableForDonation: item.AvailableForDonation,
		LastVaccinatedDate:   item.LastVaccinatedDate,
		CreatedAt:            item.CreatedAt,
	}
	if item.GSI1PK == "" {
		return l, nil
	}

	parts, err := parseKey(item.GSI1PK, locationPrefix, "", "BG", "", "AVAILABLE", "")
	if err != nil {
		return domain.DonorLocation{}, err
	}
	country, geoPartition, ok := strings.Cut(parts[0], "-")
	if !ok {
		return domain.DonorLocation{}, fmt.Errorf("malformed location partition %q: %w", item.GSI1PK, domain.ErrBadRequest)
	}
	available, err := strconv.ParseBool(parts[2])
	if err != nil {
		return domain.DonorLocation{}, fmt.Errorf("malformed location partition %q: %w", item.GSI1PK, domain.ErrBadRequest)
	}
	l.CountryCode = cellUnescaper.Replace(country)
	l.GeoPartition = cellUnescaper.Replace(geoPartition)
	l.BloodGroup = domain.BloodGroup(parts[1])
	l.AvailableForDonation = available
	l.Geohash = unescapeKey(item.GSI1SK)
	return l, nil
}

// LocationRepo stores donor locations and serves the proximity index.
type LocationRepo struct {
	*Repository[domain.DonorLocation, locationItem]
}

func NewLocationRepo(client API, table string) *LocationRepo {
	return &LocationRepo{NewRepository[domain.DonorLocation, locationItem](client, table, newLocationAdapter())}
}

// QueryGeohash returns one page of available donor locations in a
// geo-partition for a blood group. A non-empty prefix narrows the page to
// geohashes that start with it. Only the key attributes are read.
func (r *LocationRepo) QueryGeohash(ctx context.Context, country, geoPartition string, bg domain.BloodGroup, prefix string, cursor Cursor) (Page[domain.DonorLocation], error) {
	in := QueryInput{
		Partition: locationPartition(country, geoPartition, bg, true),
		Cursor:    cursor,
	}
	if prefix != "" {
		in.Sort = &SortCondition{Operator: OpBeginsWith, Value: escapeKey(prefix)}
	}
	return r.Query(ctx, in, IndexGSI1, attrPK, attrSK, attrGSI1PK, attrGSI1SK)
}

func (r *LocationRepo) Get(ctx context.Context, userID, locationID string) (domain.DonorLocation, error) {
	return r.GetItem(ctx, joinKey(userPrefix, userID), joinKey(locationPrefix, locationID))
}

func (r *LocationRepo) ListByUser(ctx context.Context, userID string) ([]domain.DonorLocation, error) {
	return r.QueryAll(ctx, QueryInput{
		Partition: joinKey(userPrefix, userID),
		Sort:      &SortCondition{Operator: OpBeginsWith, Value: keyPrefix(locationPrefix)},
	}, "")
}

func (r *LocationRepo) Remove(ctx context.Context, userID, locationID string) error {
	return r.Delete(ctx, joinKey(userPrefix, userID), joinKey(locationPrefix, locationID))
}

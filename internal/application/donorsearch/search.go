package donorsearch

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/go-blood-connect/internal/domain"
	"github.com/go-blood-connect/internal/infrastructure/dynamo"
	"github.com/mmcloughlin/geohash"
	"go.uber.org/zap"
)

const (
	DefaultPrecision = 7
	earthRadiusKm    = 6371.0
)

type locationIndex interface {
	QueryGeohash(ctx context.Context, country, geoPartition string, bg domain.BloodGroup, prefix string, cursor dynamo.Cursor) (dynamo.Page[domain.DonorLocation], error)
}

// Candidate is a donor matched to a request with the nearest of their locations.
type Candidate struct {
	DonorID string
	domain.EligibleDonor
}

// AsMap keys candidates by donor id.
func AsMap(cs []Candidate) map[string]domain.EligibleDonor {
	m := make(map[string]domain.EligibleDonor, len(cs))
	for _, c := range cs {
		m[c.DonorID] = c.EligibleDonor
	}
	return m
}

type Searcher struct {
	index     locationIndex
	precision int
	log       *zap.Logger
}

func NewSearcher(index locationIndex, precision int, log *zap.Logger) *Searcher {
	if precision <= domain.GeoPartitionLength {
		precision = DefaultPrecision
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Searcher{index: index, precision: precision, log: log}
}

// FindEligibleDonors returns up to want available donors of the requested
// blood group, nearest first. The search starts in the cell around the
// request and widens one geohash character at a time until enough donors are
// found or the whole geo-partition was read, then falls back to the eight
// neighbouring partitions. The seeker and the ids in exclude are never returned.
func (s *Searcher) FindEligibleDonors(ctx context.Context, req domain.DonationRequest, want int, exclude map[string]bool) ([]Candidate, error) {
	if want <= 0 {
		return nil, nil
	}
	hash := req.Geohash
	if hash == "" {
		hash = geohash.EncodeWithPrecision(req.Latitude, req.Longitude, uint(s.precision))
	}
	if len(hash) < domain.GeoPartitionLength {
		return nil, fmt.Errorf("request %s geohash %q too short: %w", req.RequestPostID, hash, domain.ErrBadRequest)
	}
	lat, lon := req.Latitude, req.Longitude
	if lat == 0 && lon == 0 {
		lat, lon = geohash.DecodeCenter(hash)
	}

	r := &round{
		req:     req,
		exclude: exclude,
		lat:     lat,
		lon:     lon,
		found:   make(map[string]domain.EligibleDonor),
	}
	partition := domain.PartitionOf(hash)
	prefix := hash[:min(len(hash), s.precision)]

	for n := len(prefix); n >= domain.GeoPartitionLength; n-- {
		if err := s.collect(ctx, r, partition, prefix[:n]); err != nil {
			return nil, err
		}
		if len(r.found) >= want {
			break
		}
	}
	if len(r.found) < want {
		for _, neighbour := range geohash.Neighbors(partition) {
			if err := s.collect(ctx, r, neighbour, ""); err != nil {
				return nil, err
			}
		}
	}

	out := make([]Candidate, 0, len(r.found))
	for donorID, d := range r.found {
		out = append(out, Candidate{DonorID: donorID, EligibleDonor: d})
	}
	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.DonorID, b.DonorID)
	})
	if len(out) > want {
		out = out[:want]
	}
	s.log.Debug("donor search finished",
		zap.String("request", req.RequestPostID),
		zap.Int("wanted", want),
		zap.Int("found", len(out)))
	return out, nil
}

type round struct {
	req      domain.DonationRequest
	exclude  map[string]bool
	lat, lon float64
	found    map[string]domain.EligibleDonor
}

// collect reads every page of one partition/prefix and keeps the nearest
// location per donor.
func (s *Searcher) collect(ctx context.Context, r *round, partition, prefix string) error {
	var cursor dynamo.Cursor
	for {
		page, err := s.index.QueryGeohash(ctx, r.req.CountryCode, partition, r.req.RequestedBloodGroup, prefix, cursor)
		if err != nil {
			return fmt.Errorf("search %s/%s: %w", partition, prefix, err)
		}
		for _, loc := range page.Items {
			if loc.UserID == r.req.SeekerID || r.exclude[loc.UserID] {
				continue
			}
			lat, lon := geohash.DecodeCenter(loc.Geohash)
			d := round2(haversineKm(r.lat, r.lon, lat, lon))
			if prev, ok := r.found[loc.UserID]; ok && prev.Distance <= d {
				continue
			}
			r.found[loc.UserID] = domain.EligibleDonor{LocationID: loc.LocationID, Distance: d}
		}
		if page.Next == "" {
			return nil
		}
		cursor = page.Next
	}
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

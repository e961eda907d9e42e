package donorsearch

import (
	"math"
	"time"

	"github.com/go-blood-connect/internal/domain"
)

type delayBounds struct {
	min, max time.Duration
	weight   float64
}

var delays = map[domain.UrgencyLevel]delayBounds{
	domain.UrgencyUrgent:  {min: 5 * time.Minute, max: 7 * time.Minute, weight: 0.5},
	domain.UrgencyRegular: {min: 7 * time.Minute, max: 15 * time.Minute, weight: 1},
}

var extraDonors = map[domain.UrgencyLevel]int{
	domain.UrgencyUrgent:  2,
	domain.UrgencyRegular: 1,
}

func RemainingBagsNeeded(quantity, acceptedCount int) int {
	return max(0, quantity-acceptedCount)
}

// TotalDonorsToFind is the number of donors to notify in the next round: the
// missing bags, the donors that already declined and an urgency margin.
func TotalDonorsToFind(remainingBags, rejectedCount int, urgency domain.UrgencyLevel) int {
	if remainingBags == 0 {
		return 0
	}
	return remainingBags + rejectedCount + extraDonors[bucket(urgency)]
}

// DelayPeriod is how long to wait before the next search round. It grows with
// the time left until the donation and shrinks with the bags still missing.
func DelayPeriod(remainingBags int, donationDateTime string, urgency domain.UrgencyLevel, now time.Time) time.Duration {
	b := delays[bucket(urgency)]
	if remainingBags <= 0 {
		return b.max
	}

	var hours float64
	if at, err := time.Parse(time.RFC3339, donationDateTime); err == nil {
		hours = math.Max(0, at.Sub(now).Hours())
	}
	minutes := hours * b.weight / float64(remainingBags)
	d := time.Duration(math.Round(minutes*60)) * time.Second
	return min(max(d, b.min), b.max)
}

func bucket(u domain.UrgencyLevel) domain.UrgencyLevel {
	if u == domain.UrgencyUrgent {
		return u
	}
	return domain.UrgencyRegular
}

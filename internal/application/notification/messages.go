package notification

import (
	"fmt"

	"github.com/go-blood-connect/internal/domain"
)

const (
	TitleBloodRequest = "Blood Request"
	TitleDonorFound   = "Donor Found"
	TitleDonorIgnored = "Donor Ignored"
)

// BloodRequestMessage is the body of the alert sent to a matched donor, e.g.
// "Urgent A+ blood needed | Patient in ICU".
func BloodRequestMessage(urgency domain.UrgencyLevel, bg domain.BloodGroup, description string) string {
	msg := fmt.Sprintf("%s blood needed", bg)
	if urgency == domain.UrgencyUrgent {
		msg = "Urgent " + msg
	}
	if description != "" {
		msg += " | " + description
	}
	return msg
}

func DonorFoundMessage(bg domain.BloodGroup) string {
	return fmt.Sprintf("%s blood found", bg)
}

func DonorWithdrewMessage(donorName string, bg domain.BloodGroup) string {
	if donorName == "" {
		return fmt.Sprintf("A donor withdrew from your %s blood request", bg)
	}
	return fmt.Sprintf("%s withdrew from your %s blood request", donorName, bg)
}

package domain

type User struct {
	UserID         string     `json:"id"`
	Name           string     `json:"name"`
	PhoneNumbers   []string   `json:"phoneNumbers,omitempty"`
	BloodGroup     BloodGroup `json:"bloodGroup,omitempty"`
	SnsEndpointArn string     `json:"-"`
	CreatedAt      string     `json:"createdAt"`
}

type UpsertUserRequest struct {
	Name         string     `json:"name" validate:"required"`
	PhoneNumbers []string   `json:"phoneNumbers" validate:"required,min=1,dive,required"`
	BloodGroup   BloodGroup `json:"bloodGroup" validate:"omitempty,bloodgroup"`
}

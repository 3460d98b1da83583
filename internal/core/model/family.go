package model

// FamilyMember maps a user to its family group. It is owned by the identity service and only read here.
type FamilyMember struct {
	UserID   string `json:"userId"`
	FamilyID string `json:"familyId"`
	Name     string `json:"name"`
	Role     string `json:"role"` // parent_admin, parent, child
}

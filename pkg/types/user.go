package types

import "strings"

const RoleAdmin = "admin"

// User is the snapshot kept for a signed-in shopper or admin.
type User struct {
	UserID    string `json:"userId,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Pincode   string `json:"pincode,omitempty"`
	Role      string `json:"role,omitempty"`
	IsBlocked bool   `json:"isBlocked"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	*u = User{
		UserID:    f.str("userId", "id", "user_id", "adminId", "admin_id"),
		Name:      f.str("name", "fullname", "fname", "username", "userName"),
		Email:     f.str("email", "userEmail"),
		Phone:     f.str("phone", "mobile"),
		Address:   f.str("address", "full_address"),
		Pincode:   f.str("pincode", "pinCode", "pin_code"),
		Role:      strings.ToLower(f.str("role")),
		IsBlocked: f.boolean("isBlocked", "blocked"),
	}
	return nil
}

// IsAdmin reports whether the snapshot carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.Role, RoleAdmin)
}

// LoginResponse is the body returned by the login servlets.
type LoginResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	User    *User  `json:"user,omitempty"`
}

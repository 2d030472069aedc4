package domain

type Address struct {
	Country  string `json:"country" validate:"required"`
	City     string `json:"city" validate:"required"`
	Postcode string `json:"postcode" validate:"required"`
	Street   string `json:"street" validate:"required"`
	Number   string `json:"number" validate:"required"`
}

type User struct {
	ID        int64    `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Surname   string   `json:"surname"`
	AddressID *int64   `json:"address_id"`
	Address   *Address `json:"address,omitempty"`
}

// ShippingAddressID returns the user's address id when one is on file.
func (u User) ShippingAddressID() (int64, bool) {
	if u.AddressID == nil || *u.AddressID <= 0 {
		return 0, false
	}
	return *u.AddressID, true
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     string  `json:"name" validate:"required"`
	Surname  string  `json:"surname" validate:"required"`
	Address  Address `json:"address" validate:"required"`
}

type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

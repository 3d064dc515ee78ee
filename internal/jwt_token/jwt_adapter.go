package jwttoken

// AdminValidatorAdapter exposes JWTService in the shape the admin middleware
// expects.
type AdminValidatorAdapter struct {
	service *JWTService
}

func NewAdminValidatorAdapter(service *JWTService) *AdminValidatorAdapter {
	return &AdminValidatorAdapter{service: service}
}

// ValidateSubject returns the token subject of a valid admin token.
func (a *AdminValidatorAdapter) ValidateSubject(tokenString string) (string, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

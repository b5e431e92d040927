package lifecycle

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/go-playground/validator/v10"
)

const minYearBuilt = 1800

// PropertyInput carries the owner-editable fields of a listing. Numeric
// fields are pointers so a missing value can be told apart from zero.
type PropertyInput struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Location     string   `json:"location" validate:"required"`
	Price        *float64 `json:"price" validate:"required,gte=0"`
	Beds         *int     `json:"beds" validate:"required,gte=0"`
	Baths        *int     `json:"baths" validate:"required,gte=0"`
	Sqft         *int     `json:"sqft" validate:"required,gte=0"`
	YearBuilt    *int     `json:"yearBuilt" validate:"omitempty,gte=1800"`
	Type         string   `json:"type"`
	Availability string   `json:"availability" validate:"omitempty,oneof=sale rent"`
	Description  string   `json:"description" validate:"required"`
	Amenities    []string `json:"amenities" validate:"required,min=1,dive,required"`
	Phone        string   `json:"phone" validate:"required"`
	Images       []string `json:"images" validate:"max=4,dive,required"`
}

func (in *PropertyInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	in.Type = strings.TrimSpace(in.Type)
	in.Availability = strings.ToLower(strings.TrimSpace(in.Availability))
	in.Description = strings.TrimSpace(in.Description)
	in.Phone = strings.TrimSpace(in.Phone)
	for i := range in.Amenities {
		in.Amenities[i] = strings.TrimSpace(in.Amenities[i])
	}
	for i := range in.Images {
		in.Images[i] = strings.TrimSpace(in.Images[i])
	}
}

// apply copies the input onto p. Images are replaced only when supplied.
func (in *PropertyInput) apply(p *models.Property) {
	p.Title = in.Title
	p.Location = in.Location
	p.Price = *in.Price
	p.Beds = *in.Beds
	p.Baths = *in.Baths
	p.Sqft = *in.Sqft
	p.YearBuilt = in.YearBuilt
	p.Type = in.Type
	p.Availability = models.Availability(in.Availability)
	if p.Availability == "" {
		p.Availability = models.AvailableForSale
	}
	p.Description = in.Description
	p.Amenities = append([]string(nil), in.Amenities...)
	p.Phone = in.Phone
	if len(in.Images) > 0 {
		p.Images = append([]string(nil), in.Images...)
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns validator output into a single ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return apperrors.Validation("", strings.Join(msgs, "; "))
}

func describeField(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s allows at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"

	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
)

var (
	errEmptyContactNumber = errors.New("contact number is empty")
	errContactNotDigits   = errors.New("contact number must contain digits only")
)

var contactNumberFormatting = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

type IdentifyUserOutput struct {
	Status        string `json:"status"`
	ContactNumber string `json:"contact_number"`
}

// IdentifyUser binds the session to a contact number. It is the only
// appointment tool without the identity requirement.
func (t *Toolbox) IdentifyUser(_ context.Context, sess *statex.Session, args map[string]any) (contractx.ToolResult, error) {
	raw, err := stringArg(args, "contact_number")
	if err != nil {
		return contractx.Failure(ToolIdentifyUser, contractx.ErrInvalidArgument, err.Error()), nil
	}

	number, err := normalizeContactNumber(raw, t.phoneRegion)
	if err != nil {
		return contractx.Failure(ToolIdentifyUser, contractx.ErrInvalidContactNumber, err.Error()), nil
	}

	if err := sess.Identify(number); err != nil {
		return contractx.Failure(ToolIdentifyUser, contractx.ErrInvalidContactNumber, err.Error()), nil
	}

	return contractx.Success(ToolIdentifyUser, IdentifyUserOutput{
		Status:        "identified",
		ContactNumber: number,
	}), nil
}

// normalizeContactNumber strips punctuation and a leading plus sign. With a
// region set, the number must also be a possible number for that region.
func normalizeContactNumber(raw, region string) (string, error) {
	n := contactNumberFormatting.Replace(strings.TrimSpace(raw))
	international := strings.HasPrefix(n, "+")
	n = strings.TrimPrefix(n, "+")
	if n == "" {
		return "", errEmptyContactNumber
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return "", errContactNotDigits
		}
	}

	if region != "" {
		candidate := n
		if international {
			candidate = "+" + n
		}
		num, err := phonenumbers.Parse(candidate, region)
		if err != nil || !phonenumbers.IsPossibleNumber(num) {
			return "", fmt.Errorf("contact number %s is not a possible %s number", n, region)
		}
	}
	return n, nil
}

package progression

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
	"github.com/alem-hub/guild-leveling/internal/domain/shared"
)

// Guild and member IDs are non-blank and at most 64 characters.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	// Report json names in messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type guildInput struct {
	GuildID string `json:"guild_id" validate:"notblank,max=64"`
}

type memberInput struct {
	GuildID  string `json:"guild_id" validate:"notblank,max=64"`
	MemberID string `json:"member_id" validate:"notblank,max=64"`
}

// Ceilings match guild.MaxXP and guild.MaxLevel.
type amountInput struct {
	Amount int `json:"amount" validate:"gte=0,lte=1000000000"`
}

type levelInput struct {
	Level int `json:"level" validate:"gte=1,lte=10000"`
}

type limitInput struct {
	Limit int `json:"limit" validate:"gte=1"`
}

func validateGuild(op, guildID string) error {
	return check(op, guildInput{GuildID: guildID})
}

func validateMember(op, guildID, memberID string) error {
	return check(op, memberInput{GuildID: guildID, MemberID: memberID})
}

func validateLimit(op string, n int) error {
	return check(op, limitInput{Limit: n})
}

// validateMutation checks the IDs, the property and the amount.
// Setting a level requires 1 <= amount <= guild.MaxLevel; every other amount
// must be within [0, guild.MaxXP].
func validateMutation(mu mutation, guildID, memberID string, amount int) error {
	if err := validateMember(mu.name, guildID, memberID); err != nil {
		return err
	}
	if _, err := guild.ParseProperty(string(mu.prop)); err != nil {
		return shared.WrapError(domainName, mu.name, shared.ErrValidation, "invalid property", err)
	}
	if mu.kind == opSet && mu.prop == guild.PropertyLevel {
		return check(mu.name, levelInput{Level: amount})
	}
	return check(mu.name, amountInput{Amount: amount})
}

func check(op string, input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError(domainName, op, shared.ErrValidation, "invalid input", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return shared.NewDomainError(domainName, op, shared.ErrValidation, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s, got %v", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

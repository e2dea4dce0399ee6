package utils

import (
	"strings"
	"testing"
)

type sampleForm struct {
	Name    string `validate:"required,nameok"`
	Email   string `validate:"email"`
	Message string `validate:"required,msgbody"`
}

func TestValidateStruct(t *testing.T) {
	ok := sampleForm{Name: "Kiss Anna", Email: "anna@example.hu", Message: "Szeretnék ajánlatot kérni."}
	if err := ValidateStruct(&ok); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}

	missing := ok
	missing.Name = "  "
	if err := ValidateStruct(&missing); err == nil {
		t.Fatal("required field must not be blank")
	}

	badEmail := ok
	badEmail.Email = "not-an-email"
	if err := ValidateStruct(&badEmail); err == nil {
		t.Fatal("malformed email must be rejected")
	}

	// optional email: empty passes
	noEmail := ok
	noEmail.Email = ""
	if err := ValidateStruct(&noEmail); err != nil {
		t.Fatalf("empty optional email must pass: %v", err)
	}

	short := ok
	short.Message = "rövid"
	if err := ValidateStruct(&short); err == nil {
		t.Fatal("message under 10 chars must be rejected")
	}

	long := ok
	long.Message = strings.Repeat("a", 2001)
	if err := ValidateStruct(&long); err == nil {
		t.Fatal("message over 2000 chars must be rejected")
	}

	// limits count characters, not bytes: 1800 accented letters are 3600
	// bytes but well within 2000 characters
	accented := ok
	accented.Message = strings.Repeat("ő", 1800)
	if err := ValidateStruct(&accented); err != nil {
		t.Fatalf("1800-character accented message must pass: %v", err)
	}
	accented.Message = strings.Repeat("ő", 2001)
	if err := ValidateStruct(&accented); err == nil {
		t.Fatal("2001 characters must be rejected regardless of byte width")
	}

	badName := ok
	badName.Name = "<script>"
	if err := ValidateStruct(&badName); err == nil {
		t.Fatal("markup in the name must be rejected")
	}
}

func TestValidateStruct_AcceptsAccentedNames(t *testing.T) {
	f := sampleForm{Name: "Szabó-Németh Ádám", Message: "Zenekart keresek falunapra."}
	if err := ValidateStruct(&f); err != nil {
		t.Fatalf("accented Hungarian name rejected: %v", err)
	}
}

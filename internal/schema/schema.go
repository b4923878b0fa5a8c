// Package schema describes every record shape the submission store has held
// and the rules that bring an old record up to the current shape. It is also
// the single source of the required-field list and the enum value sets used by
// both the HTTP-side validator and the store-side check.
package schema

import (
	"slices"
)

// Version identifies a record generation.
type Version int

const (
	VersionUnknown Version = iota
	// V1 is the launch form: phoneNumber plus the location/help/questions
	// free-text fields, no linkedin.
	V1
	// V2 added linkedin on top of V1.
	V2
	// V3 renamed phoneNumber to phone, dropped the free-text fields and added
	// the coding handles, waitlist flag and message.
	V3
)

// Current is the shape new submissions are written with.
const Current = V3

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	case V3:
		return "v3"
	default:
		return "unknown"
	}
}

// Field keys as stored.
const (
	FieldFullName              = "fullName"
	FieldEmail                 = "email"
	FieldPhone                 = "phone"
	FieldSchool                = "school"
	FieldCurrentYear           = "currentYear"
	FieldIndustryPreference    = "industryPreference"
	FieldLinkedIn              = "linkedin"
	FieldLeetcode              = "leetcode"
	FieldGithub                = "github"
	FieldResumeURL             = "resumeUrl"
	FieldWaitlistConsideration = "waitlistConsideration"
	FieldMessage               = "message"

	FieldPhoneNumber     = "phoneNumber"
	FieldLocation        = "location"
	FieldHelpDescription = "helpDescription"
	FieldQuestionsForUs  = "questionsForUs"
)

const (
	WaitlistYes = "Yes"
	WaitlistNo  = "No"
)

var (
	CurrentYears = []string{"Freshman", "Sophomore", "Junior", "Senior"}

	IndustryPreferences = []string{
		"Investment Banking",
		"Software Engineering",
		"Data Engineering/Data Science/Machine Learning",
		"Consulting",
		"Finance (FP&A, corp fin, accounting,..)",
		"Other",
	}

	WaitlistOptions = []string{WaitlistNo, WaitlistYes}
)

// RequiredFields must be present and non-empty on every incoming submission.
var RequiredFields = []string{
	FieldFullName,
	FieldEmail,
	FieldPhone,
	FieldSchool,
	FieldCurrentYear,
	FieldIndustryPreference,
	FieldLinkedIn,
	FieldWaitlistConsideration,
}

// OptionalFields are copied through when present and never required.
var OptionalFields = []string{FieldLeetcode, FieldGithub, FieldMessage}

// Enum restricts a field to a fixed value set.
type Enum struct {
	Field  string
	Values []string
}

func (e Enum) Allows(v string) bool {
	return slices.Contains(e.Values, v)
}

// Enums lists the enum-typed fields in the order they are checked.
var Enums = []Enum{
	{Field: FieldIndustryPreference, Values: IndustryPreferences},
	{Field: FieldWaitlistConsideration, Values: WaitlistOptions},
	{Field: FieldCurrentYear, Values: CurrentYears},
}

// EnumFor returns the enum declared for field, if any.
func EnumFor(field string) (Enum, bool) {
	for _, e := range Enums {
		if e.Field == field {
			return e, true
		}
	}
	return Enum{}, false
}

// Generation is the field set of one record version.
type Generation struct {
	Version Version
	Fields  []string
}

// Lineage lists every generation, oldest first.
var Lineage = []Generation{
	{
		Version: V1,
		Fields: []string{
			FieldFullName, FieldEmail, FieldPhoneNumber, FieldSchool, FieldCurrentYear,
			FieldIndustryPreference, FieldLocation, FieldHelpDescription, FieldQuestionsForUs,
			FieldResumeURL,
		},
	},
	{
		Version: V2,
		Fields: []string{
			FieldFullName, FieldEmail, FieldPhoneNumber, FieldSchool, FieldCurrentYear,
			FieldIndustryPreference, FieldLinkedIn, FieldLocation, FieldHelpDescription,
			FieldQuestionsForUs, FieldResumeURL,
		},
	},
	{
		Version: V3,
		Fields: []string{
			FieldFullName, FieldEmail, FieldPhone, FieldSchool, FieldCurrentYear,
			FieldIndustryPreference, FieldLinkedIn, FieldLeetcode, FieldGithub,
			FieldResumeURL, FieldWaitlistConsideration, FieldMessage,
		},
	},
}

// GenerationOf returns the field set for v.
func GenerationOf(v Version) (Generation, bool) {
	for _, g := range Lineage {
		if g.Version == v {
			return g, true
		}
	}
	return Generation{}, false
}

// RetiredFields returns the keys some older generation carried that the
// current one does not, in lineage order.
func RetiredFields() []string {
	cur, _ := GenerationOf(Current)
	var out []string
	for _, g := range Lineage {
		for _, f := range g.Fields {
			if !slices.Contains(cur.Fields, f) && !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out
}

// added returns the fields Lineage[i] introduced over its predecessor.
func added(i int) []string {
	if i == 0 {
		return Lineage[0].Fields
	}
	var out []string
	for _, f := range Lineage[i].Fields {
		if !slices.Contains(Lineage[i-1].Fields, f) {
			out = append(out, f)
		}
	}
	return out
}

// Detect guesses which generation wrote doc. A document without any retired
// key is current. Otherwise it belongs to the newest older generation whose
// added fields it carries.
func Detect(doc map[string]any) Version {
	if doc == nil {
		return VersionUnknown
	}
	legacy := slices.ContainsFunc(RetiredFields(), func(f string) bool { return has(doc, f) })
	if !legacy {
		return Current
	}
	for i := len(Lineage) - 1; i > 0; i-- {
		g := Lineage[i]
		if g.Version >= Current {
			continue
		}
		if !slices.ContainsFunc(added(i), func(f string) bool { return !has(doc, f) }) {
			return g.Version
		}
	}
	return Lineage[0].Version
}

func has(doc map[string]any, key string) bool {
	_, ok := doc[key]
	return ok
}

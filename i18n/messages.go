// Package i18n holds the user-facing strings in Serbian (Latin) and English.
package i18n

import (
	"golang.org/x/text/language"
)

type Lang string

const (
	Serbian Lang = "sr"
	English Lang = "en"
)

type Key string

const (
	UnnamedPlant      Key = "unnamed_plant"
	ImageRequired     Key = "image_required"
	InvalidImage      Key = "invalid_image"
	ImageTooLarge     Key = "image_too_large"
	InvalidLocation   Key = "invalid_location"
	InvalidRequest    Key = "invalid_request"
	SaveFailed        Key = "save_failed"
	LoadFailed        Key = "load_failed"
	DeleteFailed      Key = "delete_failed"
	ObservationAbsent Key = "observation_not_found"
	PlantAbsent       Key = "plant_not_found"
	BackToCollection  Key = "back_to_collection"
	Unauthorized      Key = "unauthorized"
	InvalidLogin      Key = "invalid_login"
	LoginDisabled     Key = "login_disabled"
	InternalError     Key = "internal_error"
)

var messages = map[Lang]map[Key]string{
	Serbian: {
		UnnamedPlant:      "Nepoznata biljka",
		ImageRequired:     "Molimo prvo snimite fotografiju biljke.",
		InvalidImage:      "Fotografija nije u podržanom formatu.",
		ImageTooLarge:     "Fotografija je prevelika.",
		InvalidLocation:   "Lokacija nije ispravna.",
		InvalidRequest:    "Neispravan zahtev.",
		SaveFailed:        "Čuvanje zapažanja nije uspelo. Pokušajte ponovo.",
		LoadFailed:        "Došlo je do greške pri učitavanju zapažanja. Pokušajte ponovo.",
		DeleteFailed:      "Brisanje zapažanja nije uspelo.",
		ObservationAbsent: "Zapažanje nije pronađeno.",
		PlantAbsent:       "Biljka nije pronađena.",
		BackToCollection:  "Nazad na zbirku",
		Unauthorized:      "Potrebna je prijava.",
		InvalidLogin:      "Pogrešni podaci za prijavu.",
		LoginDisabled:     "Prijava nije omogućena na ovom serveru.",
		InternalError:     "Došlo je do neočekivane greške.",
	},
	English: {
		UnnamedPlant:      "Unnamed Plant",
		ImageRequired:     "Please capture an image first.",
		InvalidImage:      "The photo is not in a supported format.",
		ImageTooLarge:     "The photo is too large.",
		InvalidLocation:   "The location is not valid.",
		InvalidRequest:    "Invalid request.",
		SaveFailed:        "Failed to save observation. Please try again.",
		LoadFailed:        "Failed to load observations. Please try again.",
		DeleteFailed:      "Failed to delete observation.",
		ObservationAbsent: "Observation not found.",
		PlantAbsent:       "Plant not found.",
		BackToCollection:  "Back to collection",
		Unauthorized:      "Authentication required.",
		InvalidLogin:      "Invalid credentials.",
		LoginDisabled:     "Login is not enabled on this server.",
		InternalError:     "An unexpected error occurred.",
	},
}

var matcher = language.NewMatcher([]language.Tag{
	language.MustParse("sr-Latn"),
	language.English,
})

// T returns the message for key in lang, falling back to Serbian.
func T(lang Lang, key Key) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return messages[Serbian][key]
}

// Parse maps an explicit language value ("en", "sr-Latn", "hr") to a
// supported language. ok is false when nothing usable was given.
func Parse(value string) (Lang, bool) {
	if value == "" {
		return "", false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", false
	}
	return fromTag(tag), true
}

// Negotiate picks a language from an explicit value, then from an
// Accept-Language header, then fallback.
func Negotiate(explicit, acceptLanguage string, fallback Lang) Lang {
	if l, ok := Parse(explicit); ok {
		return l
	}
	if acceptLanguage == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	if idx == 1 {
		return English
	}
	return Serbian
}

func fromTag(tag language.Tag) Lang {
	_, idx, conf := matcher.Match(tag)
	if conf != language.No && idx == 1 {
		return English
	}
	return Serbian
}

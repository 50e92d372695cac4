package providers

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ipstudio/internal/domain"
)

// StylePreamble keeps every derived artifact consistent with the source character.
const StylePreamble = "Keep the exact same cartoon character: identical colours, proportions, outfit and facial features."

// KindLabel renders a merchandise kind such as "phone_case" as "Phone Case".
func KindLabel(kind string) string {
	// Casers keep state between calls, so each call gets its own.
	return cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(kind), "_", " "))
}

// BuildTaskPrompt returns the instruction sent to the producer for a derived
// artifact of the given type. description is used for custom merchandise and
// for ip_generation requests.
func BuildTaskPrompt(t domain.TaskType, characterName, description string) string {
	name := strings.TrimSpace(characterName)
	if name == "" {
		name = "the character"
	}
	description = strings.TrimSpace(description)
	switch {
	case t == domain.TaskTypeIPGeneration:
		if description == "" {
			return "Turn the person in the photo into a cute chibi cartoon IP character on a plain white background."
		}
		return fmt.Sprintf("Turn the person in the photo into a cute chibi cartoon IP character. %s", description)
	case t == domain.TaskTypeMultiViewLeft:
		return fmt.Sprintf("%s Render %s from the left side, full body, plain white background.", StylePreamble, name)
	case t == domain.TaskTypeMultiViewBack:
		return fmt.Sprintf("%s Render %s from behind, full body, plain white background.", StylePreamble, name)
	case t == domain.TaskType3DModel:
		return fmt.Sprintf("Build a textured 3D figurine of %s from the front, left and back views.", name)
	case t == domain.TaskTypeMerchCustom:
		if description == "" {
			description = "a custom merchandise item"
		}
		return fmt.Sprintf("%s Product mockup photo: %s featuring %s.", StylePreamble, description, name)
	case t.IsMerchandise():
		return fmt.Sprintf("%s Product mockup photo of a %s featuring %s, studio lighting.",
			StylePreamble, strings.ToLower(KindLabel(t.MerchandiseKind())), name)
	default:
		return description
	}
}

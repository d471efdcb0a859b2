package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/healingherb/shifa/internal/gemini"
	"github.com/healingherb/shifa/internal/store"
)

func TestSanitizeMessage(t *testing.T) {
	require.Equal(t, "مرحبا", SanitizeMessage("  مرحبا \n"))
	require.Equal(t, "", SanitizeMessage("   \t\n"))

	long := strings.Repeat("ع", 6000)
	sanitized := SanitizeMessage(long)
	require.Equal(t, 5000, len([]rune(sanitized)))
}

func TestEmergencyKeywordDetection(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"لدي نزيف حاد", true},
		{"أشعر بألم شديد في صدري", true},
		{"أعاني من صعوبة تنفس منذ الصباح", true},
		{"ما هي فوائد النعناع؟", false},
		{"", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ContainsEmergencyKeyword(tc.message), "message %q", tc.message)
	}
}

func TestBuildSystemPromptEmbedsProfile(t *testing.T) {
	prompt := BuildSystemPrompt(store.Profile{
		Diseases:    "السكري",
		Allergies:   "البنسلين",
		Medications: "ميتفورمين",
		Age:         45,
		Gender:      "male",
	})

	require.Contains(t, prompt, "عشبة شفاء")
	require.Contains(t, prompt, "السكري")
	require.Contains(t, prompt, "البنسلين")
	require.Contains(t, prompt, "ميتفورمين")
	require.Contains(t, prompt, "45")
	require.Contains(t, prompt, "ذكر")
}

func TestBuildSystemPromptOmitsEmptyFields(t *testing.T) {
	prompt := BuildSystemPrompt(store.Profile{})
	require.NotContains(t, prompt, "الأمراض المزمنة للمستخدم")
	require.NotContains(t, prompt, "الحساسية:")
	require.NotContains(t, prompt, "العمر:")
}

func TestAssemblePromptOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	history := []store.ChatTurn{
		{Prompt: "سؤال أول", Response: "جواب أول", CreatedAt: base},
		{Prompt: "سؤال ثاني", Response: "جواب ثاني", CreatedAt: base.Add(time.Minute)},
	}

	messages := AssemblePrompt(store.Profile{}, history, "سؤال جديد")

	require.Len(t, messages, 6)
	require.Equal(t, gemini.RoleSystem, messages[0].Role)
	require.Equal(t, gemini.RoleUser, messages[1].Role)
	require.Equal(t, "سؤال أول", messages[1].Content)
	require.Equal(t, gemini.RoleAssistant, messages[2].Role)
	require.Equal(t, "جواب أول", messages[2].Content)
	require.Equal(t, "سؤال ثاني", messages[3].Content)
	require.Equal(t, "جواب ثاني", messages[4].Content)
	require.Equal(t, gemini.RoleUser, messages[5].Role)
	require.Equal(t, "سؤال جديد", messages[5].Content)
}

func TestAssemblePromptNoHistory(t *testing.T) {
	messages := AssemblePrompt(store.Profile{}, nil, "سؤال")
	require.Len(t, messages, 2)
	require.Equal(t, gemini.RoleSystem, messages[0].Role)
	require.Equal(t, "سؤال", messages[1].Content)
}

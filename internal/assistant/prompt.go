package assistant

import (
	"strconv"
	"strings"

	"github.com/healingherb/shifa/internal/gemini"
	"github.com/healingherb/shifa/internal/store"
)

const maxMessageRunes = 5000

// systemPromptBase carries the assistant's safety rules in Arabic.
const systemPromptBase = `أنت مساعد طبي عربي متخصص تسمى "عشبة شفاء". مهمتك تقديم معلومات طبية عامة ونصائح صحية.

قواعد مهمة:
1. لا تقدم تشخيصات طبية نهائية
2. لا تصف أدوية محددة بجرعات
3. شجع دائمًا على استشارة الطبيب
4. في الحالات الطارئة، نبه المريض للاتصال بالطوارئ
5. استخدم اللغة العربية الفصحى مع بعض التعبيرات الدارجة
6. كن داعمًا ومتفهمًا
7. قدم معلومات دقيقة وموثوقة
8. إذا لم تكن متأكدًا، قل "لا أعرف" بدلاً من التخمين

ملاحظة: المعلومات المقدمة هي للاسترشاد فقط وليست بديلاً عن الاستشارة الطبية.`

var emergencyKeywords = []string{
	"طارئ", "إسعاف", "مستعجل", "خطير", "مخيف", "نزيف",
	"ألم شديد", "صعوبة تنفس", "فقدان وعي", "حادث", "سكتة",
	"نوبة قلبية", "تسمم", "حرق", "غرق", "اختناق",
}

// SanitizeMessage trims and caps one chat message. The cap counts runes so
// Arabic text is never cut mid-character.
func SanitizeMessage(message string) string {
	sanitized := strings.TrimSpace(message)
	if runes := []rune(sanitized); len(runes) > maxMessageRunes {
		sanitized = string(runes[:maxMessageRunes])
	}
	return sanitized
}

// ContainsEmergencyKeyword reports whether the message contains any
// configured emergency term, matched as a case-insensitive substring.
func ContainsEmergencyKeyword(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range emergencyKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// BuildSystemPrompt synthesizes the system instruction, embedding the
// user's chronic-condition fields when present.
func BuildSystemPrompt(profile store.Profile) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)

	if profile.Diseases != "" {
		b.WriteString("\n\nالأمراض المزمنة للمستخدم: ")
		b.WriteString(profile.Diseases)
	}
	if profile.Allergies != "" {
		b.WriteString("\nالحساسية: ")
		b.WriteString(profile.Allergies)
	}
	if profile.Medications != "" {
		b.WriteString("\nالأدوية التي يتناولها: ")
		b.WriteString(profile.Medications)
	}
	if profile.Age > 0 {
		b.WriteString("\nالعمر: ")
		b.WriteString(strconv.Itoa(profile.Age))
	}
	if profile.Gender != "" {
		b.WriteString("\nالنوع: ")
		if profile.Gender == "male" {
			b.WriteString("ذكر")
		} else {
			b.WriteString("أنثى")
		}
	}
	return b.String()
}

// AssemblePrompt builds the ordered message list: one system message first,
// then stored turns as chronological user/assistant pairs, then the new
// user message last. Downstream completion quality depends on this order.
func AssemblePrompt(profile store.Profile, history []store.ChatTurn, newMessage string) []gemini.Message {
	messages := make([]gemini.Message, 0, 2+2*len(history))
	messages = append(messages, gemini.Message{Role: gemini.RoleSystem, Content: BuildSystemPrompt(profile)})

	for _, turn := range history {
		messages = append(messages,
			gemini.Message{Role: gemini.RoleUser, Content: turn.Prompt},
			gemini.Message{Role: gemini.RoleAssistant, Content: turn.Response},
		)
	}

	messages = append(messages, gemini.Message{Role: gemini.RoleUser, Content: newMessage})
	return messages
}

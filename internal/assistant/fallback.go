package assistant

import "strings"

const emergencyFallback = `🚨 **ملاحظة مهمة**: يبدو أن رسالتك تحتوي على كلمات طارئة.

💡 **تذكير عاجل**:
- للحالات الطارئة، يرجى الاتصال بالطوارئ على الرقم 123
- توجه لأقرب مستشفى أو مركز طوارئ
- لا تنتظر الرد في الحالات الحرجة

⚠️ **نظام المساعدة الطبية غير متوفر حاليًا**.
يرجى استخدام قنوات الطوارئ الرسمية للحصول على المساعدة الفورية.`

const genericFallback = `مرحبًا! 👋

عذرًا، نظام المساعدة الطبية غير متوفر حاليًا.

💡 **نصائح عامة**:
1. للحالات الطارئة: اتصل بالطوارئ على 123
2. للمواعيد: راجع طبيبك الخاص
3. للتساؤلات العامة: يمكنك البحث في قسم الأسئلة الشائعة

🔧 **حاول مرة أخرى لاحقًا**، أو:
- استخدم ميزة البحث في التطبيق
- راجع مكتبة المعلومات الصحية
- تحقق من قسم الوصفات والنصائح

نعتذر للإزعاج ونعمل على حل المشكلة.`

// FallbackResponse returns the canned reply substituted when the completion
// provider fails, selected by the emergency flag.
func FallbackResponse(isEmergency bool) string {
	if isEmergency {
		return emergencyFallback
	}
	return genericFallback
}

// EnsureEmergencyNotice prepends an emergency banner to a successful
// response that does not already carry one.
func EnsureEmergencyNotice(response string) string {
	if strings.Contains(response, "🚨") || strings.Contains(response, "طارئ") {
		return response
	}
	return `🚨 **ملاحظة مهمة**: يبدو أن رسالتك تحتوي على كلمات طارئة.

` + response + `

💡 **تذكير**: للحالات الطارئة، يرجى الاتصال بالطوارئ على 123 أو التوجه لأقرب مستشفى.`
}

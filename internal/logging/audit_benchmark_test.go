package logging

import (
	"strings"
	"testing"
)

func BenchmarkEscapeString(b *testing.B) {
	// Quoted accessible names are the common escaping case
	input := strings.Repeat(`window > button "Save" > text "Line\one"`+"\n", 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = escapeString(input)
	}
}

func BenchmarkEscapeStringNoEscapes(b *testing.B) {
	input := strings.Repeat("window > toolbar > button Save As ", 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = escapeString(input)
	}
}

func BenchmarkGenerateFact(b *testing.B) {
	e := AuditEvent{
		Timestamp: 1,
		EventType: AuditActionPerform,
		RequestID: "req-1",
		Target:    `window > button "Save"`,
		Action:    "press",
		Success:   true,
	}
	for i := 0; i < b.N; i++ {
		_ = generateFact(e)
	}
}

package service

import "testing"

func TestMatchCanned(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hi", "Here is your inventory chatbot. How can I help you?"},
		{"  HELLO  ", "Here is your inventory chatbot. How can I help you?"},
		{"Hey", "Here is your inventory chatbot. How can I help you?"},
		{"see you", "Goodbye! Have a great day!"},
		{"Later", "Goodbye! Have a great day!"},
		{"who are you", "I am an AI assistant here to help you manage your home inventory. Ask me anything about your inventory."},
		{"What do you do", "I am an AI assistant here to help you manage your home inventory. Ask me anything about your inventory."},
		{"thank you", "You're welcome! If you have any more questions, feel free to ask."},
		{"what's up", "I'm just a chatbot, but I'm here and ready to help you with your inventory questions!"},
		{"how's it going\n", "I'm just a chatbot, but I'm here and ready to help you with your inventory questions!"},
	}
	for _, tt := range tests {
		got, ok := MatchCanned(tt.input)
		if !ok {
			t.Fatalf("MatchCanned(%q) did not match", tt.input)
		}
		if got != tt.want {
			t.Fatalf("MatchCanned(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMatchCannedRequiresExactPhrase(t *testing.T) {
	for _, input := range []string{"hi there", "how many lamps do I have?", "", "thanks!"} {
		if got, ok := MatchCanned(input); ok {
			t.Fatalf("MatchCanned(%q) = %q, want no match", input, got)
		}
	}
}

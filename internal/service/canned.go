package service

import "strings"

// cannedCategory 是一组固定短语及其固定回复。
type cannedCategory struct {
	name    string
	phrases []string
	reply   string
}

var cannedCategories = []cannedCategory{
	{
		name:    "greeting",
		phrases: []string{"hi", "hello", "hey"},
		reply:   "Here is your inventory chatbot. How can I help you?",
	},
	{
		name:    "farewell",
		phrases: []string{"bye", "goodbye", "see you", "later"},
		reply:   "Goodbye! Have a great day!",
	},
	{
		name:    "identity",
		phrases: []string{"who are you", "what are you", "what do you do"},
		reply:   "I am an AI assistant here to help you manage your home inventory. Ask me anything about your inventory.",
	},
	{
		name:    "thanks",
		phrases: []string{"thanks", "thank you"},
		reply:   "You're welcome! If you have any more questions, feel free to ask.",
	},
	{
		name:    "small_talk",
		phrases: []string{"how are you", "what's up", "how's it going"},
		reply:   "I'm just a chatbot, but I'm here and ready to help you with your inventory questions!",
	},
}

// MatchCanned 对输入做小写与去空白后精确匹配固定短语，命中时返回固定回复。
// 不做模糊匹配或部分匹配。
func MatchCanned(input string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, c := range cannedCategories {
		for _, p := range c.phrases {
			if normalized == p {
				return c.reply, true
			}
		}
	}
	return "", false
}

package service

import (
	"fmt"
	"math/rand"
	"strings"
)

// User-facing strings kept in one place so wording changes never touch
// control flow.

const HelpResponse = `This is Ask Eric - an AI assistant that represents Eric Bell's professional background and expertise.

**What you can ask about:**
- Eric's technical skills, programming languages, and tools
- Work history, job roles, and career progression
- Notable projects, achievements, and accomplishments
- Subject matter expertise (DevOps, infrastructure, cloud, etc.)
- Working style, values, and leadership approach
- Professional development and learning
- How Eric would approach specific technical challenges

**What's out of scope:**
- Personal life (family, hobbies, favorites)
- Unrelated topics (weather, sports, politics)
- Off-topic requests (math problems, translations)

**Two ways to interact:**
1. **Chat with Eric** - Ask questions about his professional background
2. **Check Job Fit** - Paste a job description to see how well Eric matches

Ask away! I'm here to help you understand Eric's professional profile.`

var metaQuestions = map[string]bool{
	"how do i use this?":  true,
	"how do i use this":   true,
	"what is this?":       true,
	"what is this":        true,
	"how does this work?": true,
	"how does this work":  true,
}

var refusalResponses = []string{
	"I'm focused on Eric's professional background. Ask me about his experience, projects, or technical skills!",
	"That's outside my scope, but I can help with questions about Eric's work history, expertise, or professional values.",
	"I only discuss Eric's professional life. Try asking about his technical background or notable projects!",
	"I specialize in Eric's professional profile. Ask about his technical expertise, work experience, or how he approaches problems.",
	"Not my area, but I'm here for Eric's career and professional development. What would you like to know about his background?",
	"I focus on Eric's professional side. Happy to discuss his skills, projects, or working style!",
	"That's beyond my scope. I can tell you about Eric's technical experience, leadership approach, or career highlights.",
}

const extensionRequestedMessage = "Extension request received! We'll review your request and may extend your session. Check back shortly."

const extensionPendingMessage = "Your extension request is pending review. Please check back later."

// IsMetaQuestion reports whether the message asks how to use the assistant.
func IsMetaQuestion(message string) bool {
	return metaQuestions[strings.ToLower(strings.TrimSpace(message))]
}

// RefusalResponse picks one of the rotated out-of-scope replies.
func RefusalResponse() string {
	return refusalResponses[rand.Intn(len(refusalResponses))]
}

func limitReachedMessage(maxQueries int) string {
	return fmt.Sprintf("You have reached the maximum of %d questions for this session. To request more questions, send a message with your email address.", maxQueries)
}

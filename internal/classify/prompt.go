// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"bytes"
	"text/template"
)

const (
	maxItemContent   = 50000
	maxDeepContent   = 20000
	maxDeepAttachment = 30000
)

// relevancePromptTmpl asks for the labelled format ParseResponse reads.
var relevancePromptTmpl = template.Must(template.New("relevance").Parse(`You are analyzing a bulletin item from a university (JKU Linz, Austria) to determine if it is relevant for a specific person.

## THE PERSON'S ROLE AND INTERESTS:
{{.Role}}

## BULLETIN ITEM DETAILS:
Category: {{or .Category "Not specified"}}
Title: {{or .Title "Not specified"}}

## CONTENT:
{{.Content}}

## YOUR TASK:
1. Decide whether this bulletin item is relevant to the person based on their role and interests.
2. Give a relevance score from 0 to 100:
   - 0-20: Not relevant at all
   - 21-40: Unlikely to be relevant
   - 41-60: Possibly relevant, might want to skim
   - 61-80: Likely relevant, should read
   - 81-100: Highly relevant, important to read
   Items scoring {{.Threshold}} or more are shown to the person.
3. Err on the side of higher scores. Flagging something that turns out irrelevant is better than missing important information.
4. Write a short descriptive title of 5 to 7 words.

## RESPONSE FORMAT:
Respond in EXACTLY this format:

SCORE: [number 0-100]
SHORT_TITLE: [5-7 word title describing what this item is about]
SUMMARY: [1-2 sentences describing WHAT this item contains, without relevance reasoning]
RELEVANCE: [1-2 sentences explaining WHY this is or is not relevant to this person]
KEY_POINTS: [if relevant, 1-3 key points, one per line starting with "- "]
`))

// deepPromptTmpl covers an item together with one attachment.
var deepPromptTmpl = template.Must(template.New("deep").Parse(`You are analyzing a bulletin item from JKU Linz university, including its attachment "{{.AttachmentName}}".

## THE PERSON'S ROLE AND INTERESTS:
{{.Role}}

## BULLETIN ITEM DETAILS:
Category: {{or .Category "Not specified"}}
Title: {{or .Title "Not specified"}}

## MAIN CONTENT:
{{.Content}}

## ATTACHMENT CONTENT:
{{.AttachmentText}}

## YOUR TASK:
Give a brief analysis:
1. SUMMARY (2-3 sentences): what the attachment contains
2. KEY POINTS (3-5 bullet points at most): the most important information
3. RELEVANCE (1-2 sentences): why this matters for this person

Keep it under 150 words, in plain text without markdown headers, and do not include action items.
`))

type promptData struct {
	Role           string
	Category       string
	Title          string
	Content        string
	Threshold      float64
	AttachmentName string
	AttachmentText string
}

func renderRelevancePrompt(req Request) (string, error) {
	return render(relevancePromptTmpl, promptData{
		Role:      req.Role,
		Category:  req.Item.Category,
		Title:     req.Item.Title,
		Content:   truncate(req.Item.Text, maxItemContent),
		Threshold: req.Threshold,
	})
}

func renderDeepPrompt(req DeepRequest) (string, error) {
	return render(deepPromptTmpl, promptData{
		Role:           req.Role,
		Category:       req.Item.Category,
		Title:          req.Item.Title,
		Content:        truncate(req.Item.Text, maxDeepContent),
		AttachmentName: req.AttachmentName,
		AttachmentText: truncate(req.AttachmentText, maxDeepAttachment),
	})
}

func render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

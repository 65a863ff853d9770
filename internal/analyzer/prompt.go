package analyzer

import (
	"fmt"
	"strings"
)

const defaultStyle = "Professional email"

const promptTemplate = `
You are a highly skilled AI assistant specialized in analyzing job postings and drafting professional job application emails.

Your input text may contain multiple, unstructured job postings scraped from LinkedIn or other sources.

Your tasks:

1. Identify ALL distinct job postings in the input text.
2. FILTER OUT any job that:
   - Does NOT provide a valid apply email
   - Is located OUTSIDE %[1]s
3. For each remaining job:
   - Extract ONLY factual information explicitly present in the text
   - Generate a professional, polite, concise email draft by FOLLOWING the STYLE and STRUCTURE of the template below
   - Ensure emails are human-like, coherent, and well-formatted

Strict JSON output schema:

{
  "jobs": [
    {
      "job_title": string,
      "company": string,
      "apply_email": string,
      "job_type": "Internship" | "Full-time" | "Contract" | "Part-time" | "Unknown",
      "location": string,
      "skills": string or null,
      "jd_summary": string,
      "email_subject": string,
      "email_body_draft": string
    }
  ]
}

Field notes:
- jd_summary: 1-2 sentences summarizing role, tech stack, and expectations
- email_subject: clear, professional subject, e.g. "Application for <Job Title> role"
- email_body_draft: polished email, max 2 short paragraphs + closing

Rules for email_body_draft:
- Style reference template (DO NOT COPY TEXT):

"""
%[2]s
"""
- Preserve tone and structure
- Lightly customize for each job using job title, skills, and JD summary
- Keep paragraphs short and readable
- Do NOT exaggerate, invent skills, or fabricate experience
- Ensure proper grammar and professional formatting

Additional instructions:
- Output JSON ONLY
- Do NOT include explanations, comments, or non-job content
- Ensure all extracted jobs are unique
- Validate that apply_email looks legitimate (contains "@" and domain)
- Include only jobs in %[1]s

TEXT TO ANALYZE:
`

// BuildPrompt 组装抽取请求：固定指令 + 风格参考 + 原始文本
func BuildPrompt(rawText, styleReference, country string) string {
	style := strings.TrimSpace(styleReference)
	if style == "" {
		style = defaultStyle
	}
	if country = strings.TrimSpace(country); country == "" {
		country = "India"
	}
	return fmt.Sprintf(promptTemplate, country, style) + "\n\n" + rawText
}

package classification

import (
	"fmt"
	"strings"

	"triage_server/core/domain"
)

const promptIntro = `You are an intelligent email routing assistant for a company. Your task is to analyze incoming emails and route them to the most appropriate department(s) based on the email's content, context, and intent.`

const promptRubric = `**Your Analysis Task:**
1. Read and understand the email's main topic, intent, and any specific requests
2. Identify which department(s) would be best suited to handle this inquiry
3. Consider the expertise and responsibilities typically associated with each department name
4. Determine if multiple departments should be involved (e.g., cross-functional requests)
5. Assess your confidence level based on how clearly the email maps to department expertise

**Classification Guidelines:**
- AI/Technology: Software development, AI/ML inquiries, technical support, programming questions, system issues
- Business: Sales inquiries, partnerships, business proposals, pricing questions, contracts
- Marketing: Brand inquiries, advertising, social media, content requests, public relations
- Finance: Billing, payments, invoices, financial reports, accounting questions
- HR/Operations: Job applications, employee matters, company policies, general operations
- Support/Customer Service: Product help, user issues, general assistance, complaints

**Confidence Scoring:**
- 0.9-1.0: Email clearly and specifically mentions the department or its core functions
- 0.7-0.89: Email topic strongly aligns with department expertise, minor ambiguity
- 0.5-0.69: Email could reasonably belong to this department, but some interpretation needed
- 0.3-0.49: Weak connection, department is a possible but not ideal match
- Below 0.3: Poor match, avoid routing here

**Response Format:**
Respond ONLY with valid JSON (no markdown, no explanation outside JSON):
{
    "categories": ["Department1", "Department2"],
    "confidence": 0.85,
    "recipients": ["email1@company.com", "email2@company.com"],
    "reasoning": "Brief explanation of why this department was chosen"
}

**Important Rules:**
- Department names in "categories" MUST match EXACTLY as shown in the available departments list (case-sensitive)
- Include 1-3 most relevant departments only
- List recipients' emails from all selected departments
- Set confidence based on your analysis, not arbitrary thresholds
- If email is ambiguous or doesn't fit any department well, choose the closest match and set confidence accordingly
- Your reasoning should briefly explain the key factors in your decision

Analyze the email now and provide your classification:`

// DepartmentLine renders "- Finance: Bo (bo@co.com), Cy (cy@co.com)".
func DepartmentLine(d domain.Department) string {
	members := make([]string, len(d.Members))
	for i, m := range d.Members {
		members[i] = fmt.Sprintf("%s (%s)", m.Name, m.Email)
	}
	return fmt.Sprintf("- %s: %s", d.Name, strings.Join(members, ", "))
}

// BuildPrompt renders the routing instruction. Subject and content are embedded as-is.
func BuildPrompt(subject, content string, roster domain.Roster) string {
	lines := make([]string, len(roster))
	for i, d := range roster {
		lines[i] = DepartmentLine(d)
	}

	var b strings.Builder
	b.WriteString(promptIntro)
	b.WriteString("\n\n**Available Departments and Team Members:**\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n**Email to Classify:**\n")
	b.WriteString("Subject: ")
	b.WriteString(subject)
	b.WriteString("\nContent: ")
	b.WriteString(content)
	b.WriteString("\n\n")
	b.WriteString(promptRubric)
	return b.String()
}

package services

import "strings"

// ChatSystemInstruction steers every chat completion; context and retrieved
// documents are injected into the last user turn, not here.
const ChatSystemInstruction = "You are a helpful AI assistant. Answer the user's question based on the provided context and retrieved documents."

const quizPromptTemplate = `
You are an AI question-generation agent.
Your task is to generate a batch of high-quality MCQ questions strictly based on the following inputs:

- {user_prompt}
- {parsed_info}
- {retrieved_docs}

-------------------------------------------------
NON-NEGOTIABLE LOGIC RULES
-------------------------------------------------
1. Always follow the user_prompt strictly.
2. Before generating questions, you MUST analyze parsed_info:
   - If parsed_info is a resume: generate MCQs that test the user's knowledge of the skills, tools, technologies, and topics mentioned in the resume. Do NOT mention names or personal details.
   - If parsed_info is notes: generate MCQs that test the user's understanding of the concepts and topics covered in the notes.
3. retrieved_docs MUST also be used while constructing the quiz.
4. The purpose of the quiz is to *evaluate knowledge* related to the topics present in the parsed document.
5. Never include or refer to user names or personal identifiers.
6. All rules here are mandatory and non-negotiable.

-------------------------------------------------
GENERATION RULES
-------------------------------------------------
1. Follow the user_prompt strictly without exception.
2. Generate exactly 10 MCQs.
3. Use ONLY information from:
   - user_prompt
   - parsed_info
   - retrieved_docs
4. Each question must be factual, unambiguous, and directly supported by the provided data.
5. Each MCQ MUST contain exactly four options.
6. Only one correct answer is allowed.
7. Explanations must be short and justify the answer directly.
8. "User_response" must ALWAYS remain an empty string.
9. Output MUST be a valid JSON array containing exactly 10 MCQ objects.
10. Output MUST contain ONLY the JSON array — no extra text, no markdown, no comments.

-------------------------------------------------
REQUIRED JSON FORMAT FOR EACH QUESTION
-------------------------------------------------
{
    "question": "Which of the following CLI command can also be used to rename files?",
    "options": [
        "rm",
        "mv",
        "rm -r",
        "none of the mentioned"
    ],
    "answer": "b",
    "explanation": "mv stands for move.",
    "User_response": ""
}

-------------------------------------------------
ANSWER KEY RULES
-------------------------------------------------
- 'a' corresponds to options[0]
- 'b' corresponds to options[1]
- 'c' corresponds to options[2]
- 'd' corresponds to options[3]

Strictly follow the JSON structure and generate exactly 10 MCQs.
`

// BuildQuizPrompt fills the MCQ generation template.
func BuildQuizPrompt(parsedDoc, userPrompt, retrievedDocs string) string {
	return strings.NewReplacer(
		"{user_prompt}", userPrompt,
		"{parsed_info}", parsedDoc,
		"{retrieved_docs}", retrievedDocs,
	).Replace(quizPromptTemplate)
}

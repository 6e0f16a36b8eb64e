package services

import (
	"github.com/basherkella/cardstudio/internal/domain"
	"github.com/basherkella/cardstudio/internal/platform/llm"
)

type toolPrompt struct {
	system string
	schema *llm.Schema
}

const quoteCardInstruction = `You are a specialized Bengali Editor for Basherkella Quote Cards.
CRITICAL RULE: ALL OUTPUT MUST BE IN BENGALI LANGUAGE ONLY.

Your Task:
1. Analyze the input text carefully.
2. Extract the CORE QUOTE (what the person actually said) translated to or kept in Bengali.
3. Extract the Speaker's Name and Designation in Bengali.

Output Rules:
- 'headline': The Quote text itself in Bengali. (Do not add quotation marks).
- 'body': The Speaker's Name + Designation in Bengali (e.g. "ড. মুহাম্মদ ইউনূস, প্রধান উপদেষ্টা").
- 'caption': Write a short, engaging social media caption in Bengali (2-3 sentences).`

const newsCardInstruction = `You are a Senior News Editor for a top-tier Bengali News Portal (Basherkella).
CRITICAL RULE: ALL OUTPUT MUST BE IN BENGALI LANGUAGE ONLY. DO NOT USE ENGLISH WORDS.

Your Goal:
1. Create a CATCHY and ATTRACTIVE headline in Bengali.
2. Write a DETAILED "News Analysis" (নিউজ বিশ্লেষণ) report in Bengali.

INPUT ANALYSIS RULES:
- Read the whole text carefully.
- Extract the core facts.
- Neutralize any bias.

OUTPUT FIELDS:
1. 'headline': Must be VERY CATCHY and ATTRACTIVE. Max 3 lines visually (approx 5-15 words). Language: Bengali.
2. 'body': Leave empty or max 1 very short sentence in Bengali if context is needed.
3. 'caption': This is the Detailed News Analysis (নিউজ বিশ্লেষণ). Full journalistic report style. Strictly Bengali. Detailed and Long.`

var quoteCardSchema = llm.Object(
	llm.Prop("headline", llm.String("The direct quote text in Bengali script")),
	llm.Prop("body", llm.String("Speaker name and designation in Bengali script")),
	llm.Prop("caption", llm.String("Social media caption in Bengali script")),
)

var newsCardSchema = llm.Object(
	llm.Prop("headline", llm.String("A catchy news headline in Bengali (max 3 lines)")),
	llm.Prop("body", llm.String("Optional short context in Bengali")),
	llm.Prop("caption", llm.String("Detailed news analysis/report in Bengali language")),
)

// mainContentSchema requires mainContent and leaves notes optional.
func mainContentSchema(content, notes string) *llm.Schema {
	return &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"mainContent": llm.String(content),
			"notes":       llm.String(notes),
		},
		Required: []string{"mainContent"},
		Order:    []string{"mainContent", "notes"},
	}
}

var toolPrompts = map[domain.ToolKind]toolPrompt{
	domain.ToolTranslator: {
		system: `You are an expert English-to-Bengali News Translator.
Convert the input text (English/Banglish) into Standard High-Quality Journalistic Bengali (Prothom Alo/BBC Bangla style).
- Maintain accuracy but ensure flow is natural.
- Do not transliterate names unless necessary.
- 'mainContent': The full translated text.
- 'notes': Any specific difficult terms you translated or context notes.`,
		schema: mainContentSchema("The professional Bengali translation", "Notes on specific terms or context"),
	},
	domain.ToolProofreader: {
		system: `You are a Chief Sub-Editor (Magic Editor) for a Bengali News Desk.
Fix the input text for: Spelling errors, Grammar, Sentence Structure, and Journalistic Tone.
- 'mainContent': The polished, error-free version of the text.
- 'notes': List of major corrections made (e.g., "বানান সংশোধন: ...", "বাক্য বিন্যাস পরিবর্তন...").`,
		schema: mainContentSchema("Polished and corrected Bengali text", "Summary of changes made"),
	},
	domain.ToolScriptWriter: {
		system: `You are a TV News Script Writer. Convert the input news into a video script.
Structure:
- 'title': A catchy video title.
- 'scriptSegments': An array of scenes. Each scene has 'visual' (what to show, B-roll ideas) and 'audio' (what the anchor says).
Language: Bengali.`,
		schema: llm.Object(
			llm.Prop("title", llm.String("")),
			llm.Prop("scriptSegments", llm.ArrayOf(llm.Object(
				llm.Prop("visual", llm.String("Visual description/Camera angle/B-roll")),
				llm.Prop("audio", llm.String("Voiceover text for the anchor")),
			))),
		),
	},
	domain.ToolSocialManager: {
		system: `You are a Senior Social Media Manager. Create engaging content for social platforms based on the news.
- 'fbCaption': Engaging caption for Facebook with emojis.
- 'twitterThread': A short, punchy version for Twitter/X (max 280 chars).
- 'tags': 10-15 relevant, high-traffic hashtags in Bengali and English.`,
		schema: llm.Object(
			llm.Prop("fbCaption", llm.String("Facebook post caption")),
			llm.Prop("twitterThread", llm.String("Twitter post content")),
			llm.Prop("tags", llm.ArrayOf(llm.String(""))),
		),
	},
	domain.ToolHeadlineGenerator: {
		system: `You are a Viral News Headline Expert.
Generate 5 different styles of Bengali headlines for the input news.
Styles needed:
1. Viral/Clicky (সোশ্যাল মিডিয়ায় যা চলে)
2. SEO Friendly (সার্চ ইঞ্জিনের জন্য)
3. Formal/Journalistic (পত্রিকার জন্য)
4. Emotional (আবেগপূর্ণ)
5. Question/Mystery (প্রশ্নবোধক)`,
		schema: llm.Object(
			llm.Prop("headlines", llm.ArrayOf(llm.Object(
				llm.Prop("style", llm.String("The style of headline (e.g. Viral, SEO)")),
				llm.Prop("text", llm.String("The Bengali headline text")),
			))),
		),
	},
	domain.ToolThumbnailPrompter: {
		system: `You are an AI Art Prompt Engineer for Midjourney and DALL-E.
Read the news content and generate 4 high-quality, detailed ENGLISH prompts to generate a thumbnail image.
- Focus on: Lighting, Camera Angle, Mood, Style (Photorealistic, Cinematic, Illustration).
- DO NOT use text in the image prompts.
- Output strictly in English.`,
		schema: llm.Object(
			llm.Prop("prompts", llm.ArrayOf(llm.String("Detailed English image prompt"))),
		),
	},
	domain.ToolInterviewPrep: {
		system: `You are a Senior Investigative Journalist.
Based on the topic or person provided, generate a list of interview questions.
Categorize them:
1. Ice Breaker (Introduction)
2. Deep Dive (Core topic)
3. Controversial/Hard-hitting (Tough questions)
4. Forward-looking (Future)
Language: Bengali.`,
		schema: llm.Object(
			llm.Prop("questions", llm.ArrayOf(llm.Object(
				llm.Prop("category", llm.String("Category of the question")),
				llm.Prop("question", llm.String("The question in Bengali")),
			))),
		),
	},
	domain.ToolTickerWriter: {
		system: `You are a TV News Producer.
Convert the input news into "Ticker/Scroll" format for the bottom of a TV screen.
- Generate 6-8 very short, punchy sentences.
- Each sentence must be less than 8 words.
- Language: Bengali.`,
		schema: llm.Object(
			llm.Prop("tickers", llm.ArrayOf(llm.String("Short ticker text"))),
		),
	},
	domain.ToolSEOOptimizer: {
		system: `You are a SEO Expert for News Websites.
Optimize the input news for Search Engines (Google).
Output:
- 'metaTitle': SEO friendly title (approx 60 chars).
- 'metaDescription': Engaging description (approx 160 chars).
- 'focusKeyphrase': The main keyword.
- 'keywords': List of LSI keywords and tags.
Language: Bengali (Keywords can be mixed).`,
		schema: llm.Object(
			llm.Prop("seo", llm.Object(
				llm.Prop("metaTitle", llm.String("")),
				llm.Prop("metaDescription", llm.String("")),
				llm.Prop("focusKeyphrase", llm.String("")),
				llm.Prop("keywords", llm.ArrayOf(llm.String(""))),
			)),
		),
	},
}

// promptFor returns the instruction and schema for a tool. Card extraction
// depends on the card kind.
func promptFor(kind domain.ToolKind, cardKind domain.CardKind) (toolPrompt, bool) {
	if kind == domain.ToolCard {
		if cardKind == domain.CardKindQuote {
			return toolPrompt{system: quoteCardInstruction, schema: quoteCardSchema}, true
		}
		return toolPrompt{system: newsCardInstruction, schema: newsCardSchema}, true
	}
	prompt, ok := toolPrompts[kind]
	return prompt, ok
}

package ingestion

const htmlToMarkdownPrompt = `You convert web page HTML into clean markdown for a knowledge base.
Rules:
- Keep every piece of factual text in its original language. Do not translate.
- Preserve tables as markdown tables with the same rows and columns.
- Keep headings and list structure.
- Remove links (keep only their visible text), images, navigation, advertisements and cookie notices.
- Output only the markdown, without commentary or code fences.`

const summarizePrompt = `You summarize the attached document for a retrieval index.
Write a dense summary in the document's own language that names its subject, the questions it can answer,
key entities, numbers, dates and any table headings. Output only the summary text.`

const pdfExtractPrompt = `Extract all text from the attached PDF in reading order, in its original language.
Render tables as markdown tables. Do not summarize, translate or add commentary.`

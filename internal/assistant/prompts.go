package assistant

const analyzePrompt = `Analyze the message and the conversation history to determine what the user wants, then provide:
1. A search keyword for the product catalog
2. A short, friendly introduction (1-2 sentences) that answers the user

Keep the context of the conversation. This matters most for follow-up questions.

Guidelines:
1. Always take the whole conversation into account when choosing the keyword
2. For follow-up questions, combine the earlier product with the new requirements
3. The keyword must be specific enough for a product search
4. Keep the introduction friendly and engaging

Example:
- First message: "I'm looking for speakers"
  Follow-up: "Show me very small ones"
  Keyword: "small speakers" or "mini speakers", NOT "small models"

Return JSON:
{
  "intention": "product_search" | "category_search" | "general_conversation",
  "language": "detected language code",
  "keyword": "search term combining context and the current message",
  "introduction": "short, friendly introduction"
}`

const evaluatePrompt = `You are a helpful, friendly product advisor. Evaluate the listed products.

Guidelines:
1. Be brief but informative
2. Focus on unique selling points and value for money
3. Take the user's needs into account
4. Write in the marketplace language
5. Do not mention prices in the evaluations

Return JSON:
{
  "evaluations": {
    "1": "Short evaluation of product 1",
    "2": "Short evaluation of product 2"
  }
}`

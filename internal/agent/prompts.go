package agent

// Prompt templates for the planning and reflection calls. All of them run on
// the small planner model; the wording stays short so the calls finish fast.

const plannerPromptZH = `今天是 %s。
%s你是新聞檢索規劃器。請針對用戶問題輸出檢索計畫，格式如下，每行一個欄位：
KEYWORDS: <2-4 個檢索關鍵詞，以空格分隔>
CATEGORY: <Politics/Finance/Social/International/Sports/Tech/Health 或 ALL>
HYDE: <一句可能出現在相關新聞報導中的假設摘要>
INTENT: <brief/update/compare/explain>

用戶問題：%s`

const plannerPromptEN = `Today is %s.
%sYou are a news retrieval planner. Produce a search plan for the user question, one field per line:
KEYWORDS: <2-4 search keywords separated by spaces>
CATEGORY: <Politics/Finance/Social/International/Sports/Tech/Health or ALL>
HYDE: <one hypothetical sentence that could appear in a relevant news article>
INTENT: <brief/update/compare/explain>

User question: %s`

const reflectionPromptZH = `今天是 %s。你是事實查核員。請閱讀以下新聞內容，判斷不同來源之間是否存在矛盾。
用戶問題：%s

新聞內容：
%s

請只輸出一行，格式：
CONFLICTS: <矛盾摘要，若無矛盾請輸出 None>`

const reflectionPromptEN = `Today is %s. You are a fact checker. Read the news context below and decide whether the sources contradict each other.
User question: %s

News context:
%s

Output exactly one line in the format:
CONFLICTS: <summary of the contradiction, or None>`

const variationsPromptZH = `請為以下新聞查詢產生 2 個不同措辭的改寫，每行一個，不要加編號：
%s`

const variationsPromptEN = `Rewrite the following news query in 2 different phrasings, one per line, without numbering:
%s`

const analysisPromptZH = `今天是 %s。你是新聞分析師。請「只」根據下列事實撰寫 2-3 句分析，不得引入事實清單以外的資訊，不要加標題。

事實清單：
%s

用戶問題：%s`

const analysisPromptEN = `Today is %s. You are a news analyst. Write 2-3 sentences of analysis using ONLY the facts below. Do not introduce information outside the fact list. No headings.

Facts:
%s

User question: %s`

const followupPromptZH = `根據以下回答與新聞內容，提出最多 3 個用戶接下來可能想問的簡短追問，每行一個：

回答：
%s

新聞內容：
%s`

const followupPromptEN = `Based on the answer and news context below, suggest up to 3 short follow-up questions the user might ask next, one per line:

Answer:
%s

Context:
%s`

const clarifyPromptZH = `「%s」的範圍較廣，請問您想了解哪一項？
1. **%s**
2. **%s**
3. **%s**
4. **其他**（請補充說明）`

const greetingReplyZH = "你好！我是新聞助手。有什麼可以幫您的嗎？"
const greetingReplyEN = "Hello! I'm a news assistant. How can I help you today?"

const weatherReplyZH = `### ⚡ 今日快訊
> 我目前的資料庫沒有「天氣/氣象」的即時來源，因此無法回答天氣問題。

### 🔍 深度分析
- 建議：新增天文台或天氣新聞的 RSS 來源後再查詢。

### 📋 事實清單
- **N/A | 系統**: 未收錄氣象來源。

### ⚖️ 差異分析
無。
`

const weatherReplyEN = `### ⚡ News Flash
> My database has no live weather feeds, so I cannot answer weather questions.

### 🔍 Intelligence Briefing
- Suggestion: add a weather RSS source and ask again after the next sync.

### 📋 Key Facts
- **N/A | System**: No weather sources ingested.

### ⚖️ Conflict Analysis
None.
`

const noInfoReportZH = `### ⚡ 今日快訊
> 資料庫目前沒有關於「%s」的相關報導。

### 🔍 深度分析
- 可能原因：目前收錄來源尚未覆蓋該主題，或尚未完成下一輪同步。
- 建議：等待下一輪 RSS 同步，或新增/調整 RSS 來源以涵蓋此主題。

### 📋 事實清單
- **N/A | 系統**: 本次查詢未在資料庫中找到可引用的相關新聞。

### ⚖️ 差異分析
（無；因為沒有可對比的來源）
`

const noInfoPromptEN = `Today is %s. The user asked '%s' but no relevant news was found in the database. Politely say you don't have data on this topic yet and suggest they try a different phrasing or check back after the next sync.`

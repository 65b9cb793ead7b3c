package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/healtrip/healtrip-api/internal/clients"
	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
	"github.com/healtrip/healtrip-api/internal/utils"
)

const (
	historyWindow   = 5
	packagesPerHub  = 2
	packagesShown   = 4
	wellnessImage   = "https://images.unsplash.com/photo-1545205597-3d9d02c29597?auto=format&fit=crop&q=80&w=500"
	hospitalImage   = "https://images.unsplash.com/photo-1519494026892-80bbd2d6fd0d?auto=format&fit=crop&q=80&w=500"
	healAIPrompt    = `You are HealAI, a compassionate and professional medical assistant.
Your goal is to help patients organize their medical information.
- Be concise and reassuring.
- If they mention symptoms, acknowledge them.
- Do not give definitive medical diagnoses (you are an AI).
- Ask clarifying questions to gather history (age, chronic conditions, medications).

Context (Symptoms found so far): %s`
	intentPrompt = `You are a helper API. The user sends a message. Reply with exactly this JSON:
{"intent": "medical" | "wellness" | "general" | "greeting", "city": "detected city or null", "topic": "medical condition or yoga style or null", "is_greeting": boolean}
Examples:
"Hi there" -> {"intent":"greeting", "is_greeting":true}
"I have cataract need surgery in Delhi" -> {"intent":"medical", "city":"Delhi", "topic":"cataract"}
"Yoga retreat in Rishikesh" -> {"intent":"wellness", "city":"Rishikesh", "topic":"yoga"}`
	buddyPrompt = `You are 'Travel Buddy', a helpful medical tourism assistant.
Tone: Friendly, casual, warm.
Task: Write a short, 1-2 sentence reply.
Context: %s

Rules:
- If packages found: "I found some great [topic] options in [city] (and other top hubs)!"
- If no packages: "Buddy, I couldn't find matches right now."`
)

var (
	wellnessHubs = []string{"Rishikesh", "Kerala", "Goa"}
	medicalHubs  = []string{"Delhi", "Mumbai", "Bangalore", "Chennai"}
	cityMention  = regexp.MustCompile(`(?i)(?:to|in|visit|at)\s+([A-Za-z\s]+?)(?:$|[.,!?])`)
)

// Assistant backs the three conversational endpoints. Upstream failures
// never reach the caller; they degrade to keyword replies.
type Assistant struct {
	llm       LLM
	hf        TextGenerator
	recs      Recommendations
	chats     ChatStore
	histories ChatHistoryStore
	records   MedicalRecordStore
	log       *zap.Logger
	now       func() time.Time
	pick      picker
	shuffle   func(n int, swap func(i, j int))
}

type AssistantDeps struct {
	LLM       LLM
	HF        TextGenerator
	Recs      Recommendations
	Chats     ChatStore
	Histories ChatHistoryStore
	Records   MedicalRecordStore
	Log       *zap.Logger
}

func NewAssistant(d AssistantDeps) *Assistant {
	return &Assistant{
		llm:       d.LLM,
		hf:        d.HF,
		recs:      d.Recs,
		chats:     d.Chats,
		histories: d.Histories,
		records:   d.Records,
		log:       d.Log,
		now:       time.Now,
		pick:      rand.IntN,
		shuffle:   rand.Shuffle,
	}
}

// --- general assistant ---

type AIRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
	UserID  string         `json:"userId"`
}

type AIReply struct {
	Reply    string               `json:"reply"`
	Source   string               `json:"source"`
	Packages []models.PackageCard `json:"packages"`
}

func (a *Assistant) AIChat(ctx context.Context, req AIRequest) (*AIReply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, utils.Validation("Message is required")
	}
	out := &AIReply{Packages: []models.PackageCard{}}

	ctxJSON, _ := json.Marshal(req.Context)
	if req.Context == nil {
		ctxJSON = []byte("{}")
	}
	reply, err := a.hf.Generate(ctx, fmt.Sprintf(healAIPrompt, ctxJSON), req.Message)
	switch {
	case errors.Is(err, clients.ErrLLMDisabled):
		out.Reply, out.Source = assistantFallback(req.Message, a.pick), "simulated"
	case err != nil:
		a.log.Warn("ai generation failed, using fallback", zap.Error(err))
		out.Reply, out.Source = assistantFallback(req.Message, a.pick), "fallback-error"
	default:
		out.Reply, out.Source = strings.TrimSpace(reply), "mistral-7b"
	}

	if req.UserID != "" {
		now := a.now()
		err := a.histories.Append(ctx, req.UserID,
			models.HistoryMessage{Role: models.RoleUser, Content: req.Message, Timestamp: now},
			models.HistoryMessage{Role: models.RoleAssistant, Content: out.Reply, Timestamp: now},
		)
		if err != nil {
			a.log.Warn("failed to save ai chat history", zap.String("userId", req.UserID), zap.Error(err))
		}
	}
	return out, nil
}

// --- travel buddy ---

type BuddyReply struct {
	Status   string               `json:"status"`
	Reply    string               `json:"reply"`
	Packages []models.PackageCard `json:"packages"`
}

func (a *Assistant) BuddyChat(ctx context.Context, userID, message string) (*BuddyReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, utils.Validation("Message is required")
	}
	in := a.analyze(ctx, message)
	packages := a.buddyPackages(ctx, in)
	reply := a.compose(ctx, message, in, packages)

	if userID != "" {
		now := a.now()
		kind := "text"
		if len(packages) > 0 {
			kind = "packages"
		}
		_, err := a.chats.Append(ctx, userID,
			models.ChatMessage{Role: models.RoleUser, Content: message, Type: "text", Timestamp: now},
			models.ChatMessage{Role: models.RoleBot, Content: reply, Type: kind, Packages: packages, Timestamp: now},
		)
		if err != nil {
			a.log.Warn("failed to save buddy chat", zap.String("userId", userID), zap.Error(err))
		}
	}

	status := "no_data"
	if len(packages) > 0 || in.Intent == "greeting" {
		status = "success"
	}
	return &BuddyReply{Status: status, Reply: reply, Packages: packages}, nil
}

func (a *Assistant) analyze(ctx context.Context, message string) buddyIntent {
	raw, err := a.llm.Complete(ctx, []clients.Message{
		{Role: "system", Content: intentPrompt},
		{Role: "user", Content: message},
	}, clients.CompletionOptions{JSON: true})
	if err != nil {
		a.log.Warn("intent analysis failed, using keywords", zap.Error(err))
		return guessIntent(message)
	}
	var in struct {
		Intent     string  `json:"intent"`
		City       *string `json:"city"`
		Topic      *string `json:"topic"`
		IsGreeting bool    `json:"is_greeting"`
	}
	if err := json.Unmarshal([]byte(raw), &in); err != nil || in.Intent == "" {
		a.log.Warn("unreadable intent analysis, using keywords", zap.String("raw", raw))
		return guessIntent(message)
	}
	out := buddyIntent{Intent: in.Intent, IsGreeting: in.IsGreeting}
	if in.City != nil && !strings.EqualFold(*in.City, "null") {
		out.City = *in.City
	}
	if in.Topic != nil && !strings.EqualFold(*in.Topic, "null") {
		out.Topic = *in.Topic
	}
	return out
}

func (a *Assistant) buddyPackages(ctx context.Context, in buddyIntent) []models.PackageCard {
	cards := []models.PackageCard{}
	switch in.Intent {
	case "wellness":
		centers := fetchDiverse(ctx, in.City, wellnessHubs, a.recs.YogaSessions, a.shuffle)
		for i, c := range centers {
			subtitle := c.YogaStyle
			if subtitle == "" {
				subtitle = in.Topic
			}
			if subtitle == "" {
				subtitle = "Wellness Session"
			}
			price := string(c.Price)
			if price == "" {
				price = "On Request"
			}
			cards = append(cards, models.PackageCard{
				ID:       fmt.Sprintf("yoga_%d", i),
				Type:     "wellness",
				Title:    c.CenterName,
				Subtitle: subtitle,
				Location: c.City,
				Price:    "₹" + price,
				Image:    wellnessImage,
			})
		}
	case "medical":
		hospitals := fetchDiverse(ctx, in.City, medicalHubs, a.recs.HospitalsByCity, a.shuffle)
		subtitle := "Multi-Specialty Care"
		if in.Topic != "" {
			subtitle = in.Topic + " Treatment"
		}
		for i, h := range hospitals {
			cards = append(cards, models.PackageCard{
				ID:       fmt.Sprintf("hosp_%d", i),
				Type:     "medical",
				Title:    h.Name,
				Subtitle: subtitle,
				Location: h.City,
				Rating:   h.Rating,
				Price:    "Contact for Quote",
				Image:    hospitalImage,
			})
		}
	}
	return cards
}

// fetchDiverse returns results for the preferred city, or the top few from
// each hub when that yields nothing, shuffled and capped.
func fetchDiverse[T any](ctx context.Context, preferred string, hubs []string,
	fetch func(context.Context, string) ([]T, error), shuffle func(int, func(i, j int))) []T {
	var results []T
	if preferred != "" {
		if r, err := fetch(ctx, preferred); err == nil {
			results = r
		}
	}
	if len(results) == 0 {
		perHub := make([][]T, len(hubs))
		g, gctx := errgroup.WithContext(ctx)
		for i, hub := range hubs {
			g.Go(func() error {
				r, err := fetch(gctx, hub)
				if err != nil {
					return nil // a missing hub only narrows the choice
				}
				perHub[i] = r[:min(packagesPerHub, len(r))]
				return nil
			})
		}
		_ = g.Wait()
		for _, r := range perHub {
			results = append(results, r...)
		}
	}
	shuffle(len(results), func(i, j int) { results[i], results[j] = results[j], results[i] })
	return results[:min(packagesShown, len(results))]
}

func (a *Assistant) compose(ctx context.Context, message string, in buddyIntent, packages []models.PackageCard) string {
	city := in.City
	if city == "" {
		city = "Multiple Cities"
	}
	summary, _ := json.Marshal(map[string]any{
		"user_message":  message,
		"data_found":    len(packages) > 0,
		"package_count": len(packages),
		"intent":        in.Intent,
		"topic":         in.Topic,
		"city":          city,
	})
	reply, err := a.llm.Complete(ctx, []clients.Message{
		{Role: "system", Content: fmt.Sprintf(buddyPrompt, summary)},
	}, clients.CompletionOptions{Temperature: 0.7})
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			a.log.Warn("buddy reply failed, using template", zap.Error(err))
		}
		return buddyFallback(in, len(packages))
	}
	return strings.TrimSpace(reply)
}

func (a *Assistant) BuddyHistory(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	if userID == "" {
		return nil, utils.Validation("User ID required")
	}
	chat, err := a.chats.FindByUser(ctx, userID)
	if err != nil {
		return nil, utils.Internal("Failed to fetch history", err)
	}
	return chat.Messages, nil
}

// --- medical travel chat ---

type ChatContext struct {
	Symptoms []string `json:"symptoms"`
	History  []string `json:"history"`
}

type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type MedicalChatRequest struct {
	UserID     string       `json:"userId"`
	Message    string       `json:"message"`
	Context    *ChatContext `json:"context"`
	Attachment *Attachment  `json:"attachment"`
}

type MedicalChatReply struct {
	Reply   string               `json:"reply"`
	History []models.ChatMessage `json:"history"`
}

func (a *Assistant) MedicalChat(ctx context.Context, req MedicalChatRequest) (*MedicalChatReply, error) {
	if req.UserID == "" || strings.TrimSpace(req.Message) == "" {
		return nil, utils.Validation("UserId and Message are required")
	}
	chat, err := a.chats.FindByUser(ctx, req.UserID)
	if err != nil {
		return nil, utils.Internal("Failed to load chat", err)
	}
	record, err := a.loadRecord(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	if req.Context != nil {
		record.Merge(req.Context.Symptoms, req.Context.History)
	}
	userContent := req.Message
	if req.Attachment != nil && req.Attachment.Name != "" {
		userContent += fmt.Sprintf(" [Attached: %s]", req.Attachment.Name)
		record.Files = append(record.Files, models.RecordFile{
			FileName:   req.Attachment.Name,
			FileType:   req.Attachment.Type,
			URL:        req.Attachment.URL,
			UploadDate: now,
		})
	}
	if err := a.records.Save(ctx, record); err != nil {
		return nil, utils.Internal("Failed to save medical record", err)
	}

	reply := a.medicalReply(ctx, req, record, chat)

	chat, err = a.chats.Append(ctx, req.UserID,
		models.ChatMessage{Role: models.RoleUser, Content: userContent, Type: "text", Timestamp: now},
		models.ChatMessage{Role: models.RoleBot, Content: reply, Type: "text", Timestamp: a.now()},
	)
	if err != nil {
		return nil, utils.Internal("Failed to save chat", err)
	}
	return &MedicalChatReply{Reply: reply, History: chat.Messages}, nil
}

func (a *Assistant) loadRecord(ctx context.Context, userID string) (*models.MedicalRecord, error) {
	record, err := a.records.FindByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewMedicalRecord(userID, a.now()), nil
	}
	if err != nil {
		return nil, utils.Internal("Failed to load medical record", err)
	}
	return record, nil
}

func (a *Assistant) medicalReply(ctx context.Context, req MedicalChatRequest, record *models.MedicalRecord, chat *models.Chat) string {
	msgs := []clients.Message{{Role: "system", Content: medicalPrompt(record)}}
	for _, m := range chat.LastN(historyWindow) {
		role := "user"
		if m.Role == models.RoleBot || m.Role == models.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, clients.Message{Role: role, Content: m.Content})
	}
	content := req.Message + a.hotelPriceContext(ctx, req.Message)
	if req.Attachment != nil && req.Attachment.Name != "" {
		content += fmt.Sprintf("\n[System Note: User attached file %q. Analyze the filename context, but content reading is not supported in this version.]", req.Attachment.Name)
	}
	msgs = append(msgs, clients.Message{Role: "user", Content: content})

	reply, err := a.llm.Complete(ctx, msgs, clients.CompletionOptions{Temperature: 0.7, MaxTokens: 1024})
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil && !errors.Is(err, clients.ErrLLMDisabled) {
			a.log.Warn("medical chat completion failed, using fallback", zap.Error(err))
		}
		return medicalFallback(req.Message, len(record.Symptoms), len(chat.Messages))
	}
	return strings.TrimSpace(reply)
}

// hotelPriceContext injects live hotel prices when the message names a city.
func (a *Assistant) hotelPriceContext(ctx context.Context, message string) string {
	m := cityMention.FindStringSubmatch(message)
	if len(m) < 2 {
		return ""
	}
	city := strings.TrimSpace(m[1])
	if len(city) <= 2 {
		return ""
	}
	recs, err := a.recs.Hotels(ctx, city)
	if err != nil {
		a.log.Debug("hotel recommender unavailable", zap.String("city", city), zap.Error(err))
		return ""
	}
	if recs == nil || len(recs.Results) == 0 {
		return ""
	}
	top := recs.Results[:min(5, len(recs.Results))]
	var sum float64
	minPrice := math.Inf(1)
	for _, h := range top {
		sum += h.Price
		minPrice = math.Min(minPrice, h.Price)
	}
	avg := math.Round(sum / float64(len(top)))
	return fmt.Sprintf("\n[REAL-TIME DATA: Found %d hotels in %s. Predicted Avg Cost: ₹%.0f/night. Min: ₹%.0f/night. Examples: %s (₹%.0f). USE THESE EXACT PRICES.]",
		recs.Count, city, avg, minPrice, top[0].Name, top[0].Price)
}

func medicalPrompt(r *models.MedicalRecord) string {
	symptoms := strings.Join(r.Symptoms, ", ")
	if symptoms == "" {
		symptoms = "None recorded"
	}
	history := strings.Join(r.History, ", ")
	if history == "" {
		history = "None recorded"
	}
	return fmt.Sprintf(`You are HealAI, a warm, friendly, and expert Medical Tourism Guide.

Current Patient Profile:
- Symptoms: %s
- History: %s

GOAL: Help organize their health info and plan medical travel.

RESTRICTIONS:
- Recommend ONLY hospitals, cities, and travel destinations within INDIA.
- Use the REAL-TIME DATA provided in the context for prices. Do not invent costs if data is available.

TONE & STYLE:
- Be welcoming, casual, and empathetic.
- If the user uses "buddy", "bro", or casual language, reciprocate that warmth.

TASKS:
- If new user, welcome them and gently ask about health concerns or recent reports.
- Suggest itineraries (Start -> Hospital -> Treatment -> Recovery).
- Estimate costs in INR using the provided data.
- Keep responses concise.`, symptoms, history)
}

type ChatHistoryView struct {
	Messages      []models.ChatMessage  `json:"messages"`
	MedicalRecord *models.MedicalRecord `json:"medicalRecord"`
}

func (a *Assistant) ChatHistory(ctx context.Context, userID string) (*ChatHistoryView, error) {
	chat, err := a.chats.FindByUser(ctx, userID)
	if err != nil {
		return nil, utils.Internal("Error fetching history", err)
	}
	view := &ChatHistoryView{Messages: chat.Messages}
	record, err := a.records.FindByUser(ctx, userID)
	switch {
	case err == nil:
		view.MedicalRecord = record
	case !errors.Is(err, store.ErrNotFound):
		return nil, utils.Internal("Error fetching history", err)
	}
	return view, nil
}

func (a *Assistant) DeleteChatHistory(ctx context.Context, userID string) error {
	if err := a.chats.Delete(ctx, userID); err != nil {
		return utils.Internal("Error deleting history", err)
	}
	return nil
}

// GenerateReport renders the medical summary and stores it on the record.
func (a *Assistant) GenerateReport(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", utils.Validation("User ID required")
	}
	record, err := a.records.FindByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", utils.NotFound("No medical record found")
	}
	if err != nil {
		return "", utils.Internal("Error generating report", err)
	}
	record.GeneratedReport = record.Report(a.now())
	record.IsProcessed = true
	if err := a.records.Save(ctx, record); err != nil {
		return "", utils.Internal("Error generating report", err)
	}
	return record.GeneratedReport, nil
}

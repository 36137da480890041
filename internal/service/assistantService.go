package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/ds124wfegd/railbook/internal/database/postgres"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/pkg/llm"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const suggestSystemPrompt = `You are a railway travel assistant. Recommend trains from the provided catalog only.
Answer with a JSON object: {"suggestions":[{"train_number":"...","class":"1A|2A|3A|SL|CC|2S","reason":"..."}],"summary":"..."}.
Suggest at most three trains. Use only classes the train offers.`

const chatSystemPrompt = `You are the help desk of an online train booking site.
Answer briefly and politely about searching trains, seat classes, booking, cancellation and tickets.
Answer with a JSON object: {"reply":"..."}.`

type assistantService struct {
	completer Completer
	trainRepo repository.TrainRepository
	validate  *validator.Validate
	now       func() time.Time
}

// NewAssistantService создает AI-помощника; при completer == nil оба сценария возвращают ErrAssistantDisabled
func NewAssistantService(completer Completer, trainRepo repository.TrainRepository) AssistantService {
	v := validator.New()
	v.SetTagName("binding")
	return &assistantService{
		completer: completer,
		trainRepo: trainRepo,
		validate:  v,
		now:       time.Now,
	}
}

// Suggest подбирает поезда по маршруту и пожеланиям. Ответ модели проверяется
// и фильтруется по каталогу: неизвестные поезда и классы отбрасываются.
func (s *assistantService) Suggest(ctx context.Context, req *SuggestionRequest) (*SuggestionResult, error) {
	if s.completer == nil {
		return nil, entity.ErrAssistantDisabled
	}
	if _, err := parseTravelDate(req.Date, s.now()); err != nil {
		return nil, err
	}

	trains, err := s.trainRepo.Search(ctx, &entity.TrainSearch{
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if len(trains) == 0 {
		return &SuggestionResult{
			Suggestions: []Suggestion{},
			Summary:     fmt.Sprintf("No trains run from %s to %s.", req.Origin, req.Destination),
		}, nil
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: suggestSystemPrompt},
		{Role: llm.RoleUser, Content: suggestUserPrompt(req, trains)},
	}

	var result SuggestionResult
	if err := s.complete(ctx, messages, &result); err != nil {
		return nil, err
	}

	result.Suggestions = filterSuggestions(result.Suggestions, trains)
	return &result, nil
}

// Chat отвечает на вопрос пользователя с учетом последних MaxChatHistory реплик
func (s *assistantService) Chat(ctx context.Context, req *ChatRequest) (*ChatReply, error) {
	if s.completer == nil {
		return nil, entity.ErrAssistantDisabled
	}

	history := req.History
	if len(history) > MaxChatHistory {
		history = history[len(history)-MaxChatHistory:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: chatSystemPrompt})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})

	var reply ChatReply
	if err := s.complete(ctx, messages, &reply); err != nil {
		return nil, err
	}
	reply.Reply = strings.TrimSpace(reply.Reply)
	return &reply, nil
}

func (s *assistantService) complete(ctx context.Context, messages []llm.Message, out interface{}) error {
	if err := s.completer.CompleteJSON(ctx, messages, out); err != nil {
		logrus.WithError(err).Warn("Assistant completion failed")
		return &entity.AppError{Kind: entity.KindUnavailable, Message: "assistant is unavailable, try again later", Err: err}
	}
	if err := s.validate.Struct(out); err != nil {
		logrus.WithError(err).Warn("Assistant returned invalid output")
		return &entity.AppError{Kind: entity.KindUnavailable, Message: "assistant is unavailable, try again later", Err: fmt.Errorf("%w: %v", entity.ErrAssistantMalformed, err)}
	}
	return nil
}

func suggestUserPrompt(req *SuggestionRequest, trains []*entity.Train) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Route: %s to %s\nDate: %s\n", req.Origin, req.Destination, req.Date)
	if p := strings.TrimSpace(req.Preferences); p != "" {
		fmt.Fprintf(&b, "Preferences: %s\n", p)
	}
	b.WriteString("Catalog:\n")
	for _, t := range trains {
		classes := make([]string, 0, len(t.Classes))
		for _, c := range t.Classes {
			classes = append(classes, string(c))
		}
		fmt.Fprintf(&b, "- %s %s, departs %s, arrives %s, %s, base fare INR %.0f, classes %s\n",
			t.Number, t.Name, t.DepartureTime, t.ArrivalTime, t.Duration, t.BasePrice, strings.Join(classes, ","))
	}
	return b.String()
}

func filterSuggestions(in []Suggestion, trains []*entity.Train) []Suggestion {
	byNumber := make(map[string]*entity.Train, len(trains))
	for _, t := range trains {
		byNumber[t.Number] = t
	}

	out := make([]Suggestion, 0, len(in))
	for _, sug := range in {
		train, ok := byNumber[strings.TrimSpace(sug.TrainNumber)]
		if !ok || !train.Supports(sug.Class) {
			logrus.WithFields(logrus.Fields{
				"train": sug.TrainNumber,
				"class": sug.Class,
			}).Debug("Dropping suggestion outside catalog")
			continue
		}
		sug.TrainNumber = train.Number
		out = append(out, sug)
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const storytellerSystemPrompt = `You narrate a game of werewolf played in a small village. When villagers die, whether taken by wolves in the night, poisoned, hanged by their neighbours, shot by a dying hunter or lost to a broken heart, you tell what happened in 2-3 gothic sentences. Never reveal the role of anyone still alive.`

const groqBaseURL = "https://api.groq.com/openai/v1"

// Storyteller narrates the deaths of a room. onChunk receives each streamed piece of text.
type Storyteller interface {
	Tell(ctx context.Context, history []string, onChunk func(string)) (string, error)
}

// globalStoryteller is nil when no provider is configured
var globalStoryteller Storyteller

type llmStoryteller struct {
	model    llms.Model
	callOpts []llms.CallOption
}

func (s *llmStoryteller) Tell(ctx context.Context, history []string, onChunk func(string)) (string, error) {
	prompt := fmt.Sprintf("Game history so far:\n%s\n\nTell a short dramatic story (2-3 sentences) about the latest deaths.",
		strings.Join(history, "\n"))
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, storytellerSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var story strings.Builder
	stream := llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		story.Write(chunk)
		if onChunk != nil {
			onChunk(string(chunk))
		}
		return nil
	})
	opts := append(append([]llms.CallOption{}, s.callOpts...), stream)

	if _, err := s.model.GenerateContent(ctx, messages, opts...); err != nil {
		return "", err
	}
	return strings.TrimSpace(story.String()), nil
}

var thinkingModes = map[llms.ThinkingMode]bool{
	llms.ThinkingModeNone:   true,
	llms.ThinkingModeLow:    true,
	llms.ThinkingModeMedium: true,
	llms.ThinkingModeHigh:   true,
	llms.ThinkingModeAuto:   true,
}

// buildCallOpts turns the sampling settings into call options. Invalid values are logged and skipped.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption

	if t := cfg.StorytellerTemperature; t != "" {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			log.Printf("Storyteller: ignoring temperature %q: %v", t, err)
		} else {
			opts = append(opts, llms.WithTemperature(f))
		}
	}

	if m := llms.ThinkingMode(cfg.StorytellerThinking); m != "" {
		if thinkingModes[m] {
			opts = append(opts, llms.WithThinkingMode(m))
		} else {
			log.Printf("Storyteller: ignoring thinking mode %q (want none, low, medium, high or auto)", m)
		}
	}

	return opts
}

// storytellerProviders builds the model for each supported provider name, with a
// one-line description for the startup log.
var storytellerProviders = map[string]func(cfg AppConfig) (llms.Model, string, error){
	"ollama": func(cfg AppConfig) (llms.Model, string, error) {
		llm, err := ollama.New(ollama.WithModel(cfg.StorytellerModel), ollama.WithServerURL(cfg.StorytellerOllamaURL))
		return llm, fmt.Sprintf("Ollama model=%s url=%s", cfg.StorytellerModel, cfg.StorytellerOllamaURL), err
	},
	"openai": func(cfg AppConfig) (llms.Model, string, error) {
		llm, err := openai.New(openai.WithModel(cfg.StorytellerModel))
		return llm, "OpenAI model=" + cfg.StorytellerModel, err
	},
	"claude": func(cfg AppConfig) (llms.Model, string, error) {
		llm, err := anthropic.New(anthropic.WithModel(cfg.StorytellerModel))
		return llm, "Claude model=" + cfg.StorytellerModel, err
	},
	"gemini": func(cfg AppConfig) (llms.Model, string, error) {
		llm, err := googleai.New(context.Background(), googleai.WithDefaultModel(cfg.StorytellerModel))
		return llm, "Gemini model=" + cfg.StorytellerModel, err
	},
	"groq": func(cfg AppConfig) (llms.Model, string, error) {
		llm, err := openai.New(
			openai.WithModel(cfg.StorytellerModel),
			openai.WithBaseURL(groqBaseURL),
			openai.WithToken(cfg.GroqAPIKey),
		)
		return llm, "Groq model=" + cfg.StorytellerModel, err
	},
	"openai-compatible": func(cfg AppConfig) (llms.Model, string, error) {
		if cfg.StorytellerURL == "" {
			return nil, "", fmt.Errorf("storyteller_url is required for openai-compatible provider")
		}
		opts := []openai.Option{openai.WithModel(cfg.StorytellerModel), openai.WithBaseURL(cfg.StorytellerURL)}
		if cfg.StorytellerAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.StorytellerAPIKey))
		}
		llm, err := openai.New(opts...)
		return llm, fmt.Sprintf("openai-compatible model=%s url=%s", cfg.StorytellerModel, cfg.StorytellerURL), err
	},
}

// newStorytellerModel builds the langchaingo model for the configured provider.
// A nil model with a nil error means the storyteller is switched off.
func newStorytellerModel(cfg AppConfig) (llms.Model, string, error) {
	if cfg.StorytellerProvider == "" {
		return nil, "", nil
	}
	build, ok := storytellerProviders[cfg.StorytellerProvider]
	if !ok {
		return nil, "", fmt.Errorf("unknown storyteller provider %q", cfg.StorytellerProvider)
	}
	llm, desc, err := build(cfg)
	if err != nil {
		return nil, "", err
	}
	return llm, desc, nil
}

// initStoryteller sets up the global storyteller from config. A broken
// provider is logged and leaves the storyteller off.
func initStoryteller(cfg AppConfig) {
	llm, desc, err := newStorytellerModel(cfg)
	switch {
	case err != nil:
		log.Printf("Storyteller: failed to init %s: %v", cfg.StorytellerProvider, err)
	case llm == nil:
		log.Printf("Storyteller: disabled (set storyteller_provider to enable)")
	default:
		globalStoryteller = &llmStoryteller{model: llm, callOpts: buildCallOpts(cfg)}
		log.Printf("Storyteller: %s", desc)
	}
}

// storyFlushInterval is how often partial story text is pushed to the room
const storyFlushInterval = 300 * time.Millisecond

// storyTimeout bounds one storyteller call
const storyTimeout = 30 * time.Second

// storyDraft collects streamed chunks while the flush loop reads them
type storyDraft struct {
	mu   sync.Mutex
	text strings.Builder
}

func (d *storyDraft) add(chunk string) {
	d.mu.Lock()
	d.text.WriteString(chunk)
	d.mu.Unlock()
}

func (d *storyDraft) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimSpace(d.text.String())
}

// flushUntil publishes the draft whenever it has grown, until stop closes
func (d *storyDraft) flushUntil(stop <-chan struct{}, publish func(text string, done bool)) {
	ticker := time.NewTicker(storyFlushInterval)
	defer ticker.Stop()
	sent := ""
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if text := d.String(); text != "" && text != sent {
				sent = text
				publish(text, false)
			}
		}
	}
}

// maybeGenerateStory streams a story about the latest deaths to a room in the
// background. publish receives the growing text, then once more with done=true
// and the final text, which is also kept in the room's history.
func maybeGenerateStory(roomCode string, night int, phase Phase, publish func(text string, done bool)) {
	storyteller := globalStoryteller
	if storyteller == nil {
		return
	}

	go func() {
		history, err := getStoryHistory(roomCode)
		if err != nil {
			log.Printf("maybeGenerateStory: fetch history: %v", err)
			return
		}

		draft := &storyDraft{}
		stop := make(chan struct{})
		flushed := make(chan struct{})
		go func() {
			defer close(flushed)
			draft.flushUntil(stop, publish)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), storyTimeout)
		_, err = storyteller.Tell(ctx, history, draft.add)
		cancel()
		close(stop)
		<-flushed

		if err != nil {
			log.Printf("maybeGenerateStory: storyteller error for room %s: %v", roomCode, err)
			return
		}
		final := draft.String()
		if final == "" {
			return
		}

		story := GameEvent{Kind: EventKindStory, Night: night, Phase: phase, Description: final}
		if err := recordEvents(roomCode, []GameEvent{story}); err != nil {
			logError("maybeGenerateStory: recordEvents", err)
		}
		log.Printf("Storyteller: completed story for room %s night %d", roomCode, night)
		publish(final, true)
	}()
}

package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pharmacore/pkg/domain"
)

var stock = []domain.Medicine{
	{ID: "1", Name: "Amoxicillin", GenericName: "Amoxicillin Trihydrate", Stock: 150, Price: 12.5},
	{ID: "2", Name: "Panadol", GenericName: "Paracetamol", Stock: 200, Price: 5},
	{ID: "3", Name: "Augmentin", GenericName: "Amoxicillin Clavulanate", Stock: 40, Price: 45},
}

func TestOfflineMatchesByNameAndGenericName(t *testing.T) {
	answer, err := Offline{}.Respond(context.Background(), Query{Prompt: "Do we have paracetamol?", Language: English, Inventory: stock})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.HasPrefix(answer, "**I am running in Offline Mode.") {
		t.Fatalf("missing intro: %q", answer)
	}
	if !strings.Contains(answer, "- **Panadol** (Paracetamol)\n  Stock: 200 | Price: 5") {
		t.Fatalf("missing match: %q", answer)
	}
	if strings.Contains(answer, "Augmentin") {
		t.Fatalf("unexpected match: %q", answer)
	}
}

func TestOfflinePartialNameMatch(t *testing.T) {
	got := Match("AMOX", stock)
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected prefix match on name only, got %+v", got)
	}
}

func TestOfflineCapsMatches(t *testing.T) {
	var many []domain.Medicine
	for i := 0; i < 5; i++ {
		many = append(many, domain.Medicine{ID: string(rune('a' + i)), Name: "Vitamin", GenericName: "x"})
	}
	if got := Match("vitamin", many); len(got) != MaxMatches {
		t.Fatalf("expected %d matches, got %d", MaxMatches, len(got))
	}
}

func TestOfflineNoMatchArabic(t *testing.T) {
	answer, _ := Offline{}.Respond(context.Background(), Query{Prompt: "dose for insulin", Language: Arabic, Inventory: stock})
	if !strings.Contains(answer, texts[Arabic].noMatch) || !strings.Contains(answer, texts[Arabic].intro) {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestParseLanguage(t *testing.T) {
	if ParseLanguage(" AR ") != Arabic || ParseLanguage("fr") != English || ParseLanguage("") != English {
		t.Fatalf("unexpected language parsing")
	}
}

func TestAsyncRejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := ResponderFunc(func(ctx context.Context, q Query) (string, error) {
		close(started)
		<-release
		return "late", nil
	})
	a := NewAsync(slow, 1)
	result := make(chan string, 1)
	if err := a.start(context.Background(), Query{}, func(s string, _ error) { result <- s }); err != nil {
		t.Fatalf("go: %v", err)
	}
	<-started
	if _, err := a.Respond(context.Background(), Query{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if a.inFlight() != 1 {
		t.Fatalf("expected one in flight")
	}
	close(release)
	if got := <-result; got != "late" {
		t.Fatalf("unexpected result %q", got)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := a.Respond(context.Background(), Query{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestAsyncRespondDelegates(t *testing.T) {
	a := NewAsync(Offline{}, 2)
	answer, err := a.Respond(context.Background(), Query{Prompt: "augmentin", Inventory: stock})
	if err != nil || !strings.Contains(answer, "Augmentin") {
		t.Fatalf("unexpected answer %q %v", answer, err)
	}
	if a.inFlight() != 0 {
		t.Fatalf("slot not released")
	}
	if got, _ := NewAsync(nil, 0).Respond(context.Background(), Query{}); got != "" {
		t.Fatalf("nil responder should behave as Noop")
	}
}

func TestMatchIgnoresEmptyPromptAndNames(t *testing.T) {
	if got := Match("   ", stock); len(got) != 0 {
		t.Fatalf("blank prompt matched %+v", got)
	}
	if got := Match("aspirin", []domain.Medicine{{ID: "x", Name: "Zinc"}}); len(got) != 0 {
		t.Fatalf("empty generic name matched %+v", got)
	}
}

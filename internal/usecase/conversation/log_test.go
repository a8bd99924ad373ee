package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
	"github.com/kailas-cloud/studybuddy/internal/domain/message"
)

func userDraft(text string) message.Draft {
	return message.Draft{Role: message.RoleUser, Text: text, Category: category.ShortForm}
}

func TestLog_AppendAssignsIncreasingIDs(t *testing.T) {
	l := NewLog()

	first := l.Append(userDraft("q1"))
	pair := l.Append(userDraft("q2"), message.Draft{Role: message.RoleAssistant, Text: "a2"})

	if len(first) != 1 || first[0].ID() != 1 {
		t.Fatalf("expected first id 1, got %+v", first)
	}
	if len(pair) != 2 || pair[0].ID() != 2 || pair[1].ID() != 3 {
		t.Fatalf("expected ids 2,3, got %d,%d", pair[0].ID(), pair[1].ID())
	}
	if l.Len() != 3 {
		t.Errorf("expected len 3, got %d", l.Len())
	}
}

func TestLog_AppendSkipsInvalidRole(t *testing.T) {
	l := NewLog()

	got := l.Append(message.Draft{Role: "system", Text: "x"}, userDraft("q"))
	if len(got) != 1 || got[0].ID() != 1 {
		t.Fatalf("expected a single message with id 1, got %d messages", len(got))
	}
}

func TestLog_Timestamps(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewLog().WithClock(func() time.Time { return at })

	m := l.Append(userDraft("q"))[0]
	if !m.CreatedAt().Equal(at) {
		t.Errorf("expected created_at %s, got %s", at, m.CreatedAt())
	}
}

func TestLog_AllIsRestartable(t *testing.T) {
	l := NewLog()
	l.Append(userDraft("q1"), userDraft("q2"))

	for range 2 {
		var ids []int64
		for m := range l.All() {
			ids = append(ids, m.ID())
		}
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Fatalf("unexpected iteration %v", ids)
		}
	}
}

func TestLog_AllStopsEarly(t *testing.T) {
	l := NewLog()
	l.Append(userDraft("q1"), userDraft("q2"), userDraft("q3"))

	n := 0
	for range l.All() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("expected to stop after 2, got %d", n)
	}
}

func TestLog_After(t *testing.T) {
	l := NewLog()
	l.Append(userDraft("q1"), userDraft("q2"), userDraft("q3"))

	var texts []string
	for m := range l.After(1) {
		texts = append(texts, m.Text())
	}
	if len(texts) != 2 || texts[0] != "q2" || texts[1] != "q3" {
		t.Errorf("unexpected messages after id 1: %v", texts)
	}
}

func TestLog_SnapshotIsCopy(t *testing.T) {
	l := NewLog()
	l.Append(userDraft("q1"))

	snap := l.Snapshot()
	l.Append(userDraft("q2"))

	if len(snap) != 1 {
		t.Errorf("snapshot must not observe later appends, len=%d", len(snap))
	}
}

func TestLog_ConcurrentAppendsKeepPairsAdjacent(t *testing.T) {
	l := NewLog()

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range workers {
		go func() {
			defer wg.Done()
			l.Append(
				message.Draft{Role: message.RoleUser, Text: "q", Category: category.LongForm},
				message.Draft{Role: message.RoleAssistant, Text: string(rune('a' + i%26)), Category: category.LongForm},
			)
		}()
	}
	wg.Wait()

	msgs := l.Snapshot()
	if len(msgs) != 2*workers {
		t.Fatalf("expected %d messages, got %d", 2*workers, len(msgs))
	}
	for i, m := range msgs {
		if m.ID() != int64(i+1) {
			t.Fatalf("id %d at position %d: ids must be dense and ordered", m.ID(), i)
		}
		wantRole := message.RoleUser
		if i%2 == 1 {
			wantRole = message.RoleAssistant
		}
		if m.Role() != wantRole {
			t.Fatalf("position %d: expected %s, got %s", i, wantRole, m.Role())
		}
	}
}

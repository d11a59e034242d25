package dashboard

import (
	"fmt"
	"testing"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

func TestInbox_DrainClears(t *testing.T) {
	in := NewInbox(0)
	if got := in.Drain(); got == nil || len(got) != 0 {
		t.Errorf("Drain() on empty inbox = %#v, want empty slice", got)
	}

	in.Notify(models.Notification{Description: "one", Variant: VariantDestructive})
	in.Notify(models.Notification{Description: "two", Variant: VariantDefault})
	got := in.Drain()
	if len(got) != 2 || got[0].Description != "one" || got[1].Description != "two" {
		t.Errorf("Drain() = %+v, want [one two]", got)
	}
	if in.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", in.Len())
	}
}

func TestInbox_DropsOldestWhenFull(t *testing.T) {
	in := NewInbox(3)
	for i := 1; i <= 5; i++ {
		in.Notify(models.Notification{Description: fmt.Sprint(i)})
	}
	got := in.Drain()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Description != "3" || got[2].Description != "5" {
		t.Errorf("Drain() = %+v, want 3..5", got)
	}
}

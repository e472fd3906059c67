package notify_test

import (
	"testing"

	"github.com/kvitka-ua/backend-kvitka/internal/notify"
)

func TestFormatDeliveryAddress(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{
			"full nova poshta payload",
			`{"city":"Київ","warehouse":"Відділення №12","region":"Київська"}`,
			"місто: Київ, відділення: Відділення №12, область: Київська",
		},
		{
			"alternate carrier keys",
			`{"cityName":"Львів","branch":"5"}`,
			"місто: Львів, відділення: 5",
		},
		{
			"numeric warehouse",
			`{"city":"Одеса","warehouseNumber":34}`,
			"місто: Одеса, відділення: 34",
		},
		{
			"courier address only",
			`{"street":"вул. Хрещатик 1","zip":"01001"}`,
			"адреса: вул. Хрещатик 1, індекс: 01001",
		},
		{
			"priority key wins within a component",
			`{"city":"Харків","settlement":"ігнорується"}`,
			"місто: Харків",
		},
	}
	for _, tc := range cases {
		if got := notify.FormatDeliveryAddress([]byte(tc.payload)); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFormatDeliveryAddressDegradesToPlaceholder(t *testing.T) {
	for _, payload := range []string{"", "not json", "[1,2]", "{}", `{"unknown":"x"}`, `{"city":""}`, `{"city":null}`} {
		if got := notify.FormatDeliveryAddress([]byte(payload)); got != notify.AddressPlaceholder {
			t.Fatalf("payload %q: got %q, want placeholder", payload, got)
		}
	}
}

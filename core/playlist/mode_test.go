package playlist

import (
	"testing"

	"pleia/model"
)

func TestDetermineMode(t *testing.T) {
	tests := []struct {
		name   string
		intent *model.Intent
		prompt string
		want   Mode
	}{
		{
			name:   "explicit mode wins over keywords",
			intent: &model.Intent{Mode: "VIRAL"},
			prompt: "reggaeton al estilo de Quevedo",
			want:   ModeViral,
		},
		{
			name:   "underground strict with style cue becomes artist style",
			intent: &model.Intent{Mode: "UNDERGROUND_STRICT"},
			prompt: "algo como Cruz Cafuné",
			want:   ModeArtistStyle,
		},
		{
			name:   "underground strict without style cue becomes normal",
			intent: &model.Intent{Mode: "UNDERGROUND_STRICT"},
			prompt: "rap underground español",
			want:   ModeNormal,
		},
		{
			name:   "viral keyword",
			intent: &model.Intent{},
			prompt: "canciones virales de TikTok",
			want:   ModeViral,
		},
		{
			name:   "festival name plus year",
			intent: &model.Intent{},
			prompt: "cartel del Primavera Sound 2023",
			want:   ModeFestival,
		},
		{
			name:   "year without festival keyword is not festival",
			intent: &model.Intent{},
			prompt: "canciones de 1999",
			want:   ModeNormal,
		},
		{
			name:   "style cue",
			intent: &model.Intent{},
			prompt: "música al estilo de Rosalía",
			want:   ModeArtistStyle,
		},
		{
			name:   "plain prompt defaults to normal",
			intent: &model.Intent{},
			prompt: "reggaeton para una fiesta este finde",
			want:   ModeNormal,
		},
		{
			name:   "nil intent defaults to heuristics",
			intent: nil,
			prompt: "algo tranquilo para estudiar",
			want:   ModeNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineMode(tt.intent, tt.prompt)
			if got != tt.want {
				t.Fatalf("DetermineMode: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtractFestivalInfo(t *testing.T) {
	name, year := ExtractFestivalInfo("cartel del Mad Cool 2024")
	if year != 2024 {
		t.Fatalf("year: got %d, want 2024", year)
	}
	if name == "" {
		t.Fatal("expected a festival name")
	}

	if _, y := ExtractFestivalInfo("Mad Cool sin año"); y != 0 {
		t.Fatalf("expected no year, got %d", y)
	}
	if n, _ := ExtractFestivalInfo("canciones de 2020"); n != "" {
		t.Fatalf("expected no festival, got %q", n)
	}
}

package imgproc

type Config struct {
	Limit       int      // Maximum number of images to decode, 0 disables the check
	Extensions  []string // Lowercase file extensions treated as images
	MaxFailures int      // Failures listed in the report before truncating
}

var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

func (c Config) withDefaults() Config {
	if len(c.Extensions) == 0 {
		c.Extensions = DefaultExtensions
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 20
	}
	return c
}

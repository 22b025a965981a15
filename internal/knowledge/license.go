package knowledge

import (
	"fmt"

	"github.com/aihub/chatbot-go/internal/config"
	officelicense "github.com/unidoc/unioffice/common/license"
	pdflicense "github.com/unidoc/unipdf/v3/common/license"
)

// ApplyLicenses 设置unidoc计量许可，未配置的key跳过
func ApplyLicenses(cfg config.UnidocConfig) error {
	if cfg.OfficeLicenseKey != "" {
		if err := officelicense.SetMeteredKey(cfg.OfficeLicenseKey); err != nil {
			return fmt.Errorf("unioffice license: %w", err)
		}
	}
	if cfg.PDFLicenseKey != "" {
		if err := pdflicense.SetMeteredKey(cfg.PDFLicenseKey); err != nil {
			return fmt.Errorf("unipdf license: %w", err)
		}
	}
	return nil
}

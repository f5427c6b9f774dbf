package checks

import (
	"fmt"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

type imageAltText struct{ check.Base }

func newImageAltText(Options) check.Check {
	return imageAltText{check.NewBase("image_alt_text", "Image Alt Text", check.CategoryImages, check.SeverityHigh)}
}

func (c imageAltText) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	images := p.Images()
	if len(images) == 0 {
		return nil, nil
	}

	var missing []string
	for _, img := range images {
		if !img.HasAlt {
			missing = append(missing, img.Src)
		}
	}

	if len(missing) > 0 {
		return c.One(p, check.StatusFail,
			fmt.Sprintf("%d of %d images missing alt text", len(missing), len(images)),
			"Describe each meaningful image with an alt attribute; use alt=\"\" for decorative ones",
			sample(missing, 3)), nil
	}
	return c.One(p, check.StatusPass, fmt.Sprintf("All %s have alt text", plural(len(images), "image")), "", ""), nil
}

type responsiveImages struct{ check.Base }

func newResponsiveImages(Options) check.Check {
	return responsiveImages{check.NewBase("responsive_images_srcset", "Responsive Images", check.CategoryImages, check.SeverityMedium)}
}

func (c responsiveImages) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	images := p.Images()
	if len(images) == 0 {
		return nil, nil
	}

	responsive := 0
	for _, img := range images {
		if img.Srcset != "" || img.InPicture {
			responsive++
		}
	}

	evidence := fmt.Sprintf("%d of %d images use srcset or <picture>", responsive, len(images))
	if responsive == 0 {
		return c.One(p, check.StatusWarning, "No responsive images detected",
			"Serve sized variants with srcset or <picture> to save bandwidth on small screens", evidence), nil
	}
	return c.One(p, check.StatusPass, "Page uses responsive images", "", evidence), nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/havenchat/companion/internal/audio"
	"github.com/havenchat/companion/internal/config"
	speechmodel "github.com/havenchat/companion/internal/model/speech"
	"github.com/havenchat/companion/internal/service/speech"
	"github.com/havenchat/companion/internal/service/transcribe"
	"github.com/havenchat/companion/internal/service/voice"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: record, transcribe 或 tts")
	audioPath := flag.String("audio", "", "transcribe 输入的 webm 文件，留空则现场录音")
	duration := flag.Duration("duration", 5*time.Second, "录音时长")
	text := flag.String("text", "", "TTS 输入文本")
	prompt := flag.String("prompt", "", "用户原话，用于推断朗读语气")
	outputPath := flag.String("out", "", "输出文件路径 (默认根据模式自动生成)")
	voiceID := flag.String("voice", "", "TTS 声音 ID 或别名，默认使用配置中的 TTSVoice")
	play := flag.Bool("play", false, "TTS 合成后直接播放")
	timeout := flag.Duration("timeout", 90*time.Second, "请求超时时间")

	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "record":
		clip := record(ctx, cfg, *duration)
		writeOutput(*outputPath, "recording", "webm", clip.Data)
	case "transcribe":
		runTranscribe(ctx, cfg, *audioPath, *duration)
	case "tts":
		runTTS(ctx, cfg, speechmodel.Utterance{Text: *text, Prompt: *prompt}, *voiceID, *outputPath, *play)
	default:
		flag.Usage()
		log.Fatal("请通过 -mode=record、-mode=transcribe 或 -mode=tts 指定测试模式")
	}
}

func record(ctx context.Context, cfg *config.Config, duration time.Duration) speechmodel.AudioClip {
	controller := voice.NewController(
		audio.NewFFMPEGCapture(cfg.Audio.FFMPEG),
		voice.CaptureConfig{InputFormat: cfg.Audio.InputFormat, InputDevice: cfg.Audio.InputDevice},
		func(state voice.State) { log.Printf("录音状态: %s", state) },
	)

	if err := controller.Start(ctx); err != nil {
		log.Fatalf("打开麦克风失败: %v", err)
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}

	clip, err := controller.Stop(context.Background())
	if err != nil {
		log.Fatalf("结束录音失败: %v", err)
	}
	log.Printf("录音完成: %d bytes (%s)", len(clip.Data), clip.MIMEType)
	return clip
}

func runTranscribe(ctx context.Context, cfg *config.Config, audioPath string, duration time.Duration) {
	transcriber, err := transcribe.New(ctx, cfg.Transcription)
	if err != nil {
		log.Fatalf("转写服务初始化失败: %v", err)
	}

	var clip speechmodel.AudioClip
	if audioPath != "" {
		data, err := os.ReadFile(audioPath)
		if err != nil {
			log.Fatalf("读取音频文件失败: %v", err)
		}
		clip = speechmodel.AudioClip{Data: data, MIMEType: speechmodel.MIMETypeWebM}
	} else {
		clip = record(ctx, cfg, duration)
	}

	if clip.Empty() {
		log.Fatal("音频为空，跳过转写")
	}

	log.Printf("开始转写: provider=%s bytes=%d", cfg.Transcription.Provider, len(clip.Data))
	start := time.Now()
	text, err := transcriber.Transcribe(ctx, clip)
	if err != nil {
		log.Fatalf("转写失败: %v", err)
	}
	log.Printf("转写成功 (%s): %q", time.Since(start).Round(time.Millisecond), text)
}

func runTTS(ctx context.Context, cfg *config.Config, u speechmodel.Utterance, voiceID, outputPath string, play bool) {
	if !cfg.Speech.Enabled {
		log.Fatal("语音服务未启用，请先在环境变量中配置 SPEECH_APP_ID 与 SPEECH_ACCESS_TOKEN")
	}
	if strings.TrimSpace(u.Text) == "" {
		log.Fatal("TTS 模式需要通过 -text 提供待合成文本")
	}
	if voiceID == "" {
		voiceID = cfg.Speech.TTSVoice
	}

	synth := speech.NewVolcengineSynthesizer(cfg.Speech.TTSConfig(), "")

	if play {
		output := speech.NewSynthesizedOutput(synth, audio.NewProcessPlayer(cfg.Speech.Player), voiceID, cfg.Speech.MoodTone)
		log.Printf("开始朗读: voice=%s", voiceID)
		if err := output.Speak(ctx, u, func() { log.Println("播放开始") }); err != nil {
			log.Fatalf("朗读失败: %v", err)
		}
		log.Println("播放结束")
		return
	}

	req := &speechmodel.TTSRequest{
		Text:   strings.TrimSpace(u.Text),
		Voice:  speech.NormalizeVoiceAlias(voiceID),
		Format: "mp3",
	}
	log.Printf("开始进行 TTS 测试: voice=%s format=%s", req.Voice, req.Format)

	resp, err := synth.Synthesize(ctx, req)
	if err != nil {
		log.Fatalf("TTS 调用失败: %v", err)
	}
	writeOutput(outputPath, "tts-output", req.Format, resp.AudioData)
}

func writeOutput(path, prefix, ext string, data []byte) {
	if path == "" {
		path = fmt.Sprintf("%s-%d.%s", prefix, time.Now().Unix(), ext)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}
	log.Printf("已写入 %s (%d bytes)", path, len(data))
}
